/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotplanner/internal/editor"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/scheduling"
	"github.com/friendsincode/slotplanner/internal/slots"
)

var (
	slotTitle       string
	slotDescription string
	slotType        string
	slotNotes       string
	slotRequestOnly bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Edit the slots of an event",
}

var slotsListCmd = &cobra.Command{
	Use:   "list <event-id>",
	Short: "List slots and report validation problems",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlotsList,
}

var slotsAddCmd = &cobra.Command{
	Use:   "add <event-id>",
	Short: "Append a slot spanning the event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(s *editor.Session) error {
			slot, err := s.Manager().AddSlot()
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), slot.ID)
			}
			return err
		})
	},
}

var slotsRemoveCmd = &cobra.Command{
	Use:   "remove <event-id> <slot-id>",
	Short: "Remove a slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(s *editor.Session) error {
			if err := requireUnlocked(s.Manager(), args[1]); err != nil {
				return err
			}
			return s.Manager().RemoveSlot(args[1])
		})
	},
}

var slotsSetTimeCmd = &cobra.Command{
	Use:   "set-time <event-id> <slot-id> <start|end> <HH:MM>",
	Short: "Change a slot's start or end time",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, ok := slots.ParseTimeField(args[2])
		if !ok {
			return fmt.Errorf("unknown time field %q", args[2])
		}
		return withSession(cmd, args[0], func(s *editor.Session) error {
			if err := requireUnlocked(s.Manager(), args[1]); err != nil {
				return err
			}
			return s.Manager().UpdateSlotTime(args[1], field, args[3])
		})
	},
}

var slotsEditCmd = &cobra.Command{
	Use:   "edit <event-id> <slot-id>",
	Short: "Change a slot's details",
	Long: `Change a slot's details. Only the flags given are applied.

Example:
  slotplanner slots edit 3f2a... slot_9c1e... --title "Headliner" --type performance`,
	Args: cobra.ExactArgs(2),
	RunE: runSlotsEdit,
}

var slotsSortCmd = &cobra.Command{
	Use:   "sort <event-id>",
	Short: "Order slots by start time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(s *editor.Session) error {
			return s.Manager().SortByStartTime()
		})
	},
}

var slotsApplyTemplateCmd = &cobra.Command{
	Use:   "apply-template <event-id> <template-index>",
	Short: "Replace the slots with a copy of a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid template index %q", args[1])
		}
		return withSession(cmd, args[0], func(s *editor.Session) error {
			tmpl, err := s.ApplyTemplate(cmd.Context(), index)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %q (%d slots)\n", tmpl.Name, len(tmpl.Slots))
			}
			return err
		})
	},
}

var slotsSaveTemplateCmd = &cobra.Command{
	Use:   "save-template <event-id> <name>",
	Short: "Store the event's slots as a named template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(s *editor.Session) error {
			tmpl, err := s.SaveAsTemplate(cmd.Context(), args[1])
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %q (%d slots)\n", tmpl.Name, len(tmpl.Slots))
			}
			return err
		})
	},
}

func init() {
	slotsEditCmd.Flags().StringVar(&slotTitle, "title", "", "Title")
	slotsEditCmd.Flags().StringVar(&slotDescription, "description", "", "Description")
	slotsEditCmd.Flags().StringVar(&slotType, "type", "", "performance, setup, breakdown, break or other")
	slotsEditCmd.Flags().StringVar(&slotNotes, "notes", "", "Internal notes")
	slotsEditCmd.Flags().BoolVar(&slotRequestOnly, "request-only", false, "Only bookable on request")

	slotsCmd.AddCommand(
		slotsListCmd,
		slotsAddCmd,
		slotsRemoveCmd,
		slotsSetTimeCmd,
		slotsEditCmd,
		slotsSortCmd,
		slotsApplyTemplateCmd,
		slotsSaveTemplateCmd,
	)
	rootCmd.AddCommand(slotsCmd)
}

// withSession opens an editor session on eventID, runs fn and saves.
func withSession(cmd *cobra.Command, eventID string, fn func(s *editor.Session) error) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, repo, cleanup, err := stores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := editor.Open(ctx, store, eventID,
		editor.WithPolicyName(cfg.SlotPolicy),
		editor.WithTemplates(repo),
		editor.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	if err := session.Save(ctx); err != nil {
		return err
	}
	return printSlots(cmd.OutOrStdout(), session.Manager().Slots())
}

// requireUnlocked refuses edits to booked or pending slots.
func requireUnlocked(m *slots.Manager, id string) error {
	slot, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("slot %s not found", id)
	}
	if slot.Locked() {
		return fmt.Errorf("slot %s is booked or pending", id)
	}
	return nil
}

func runSlotsEdit(cmd *cobra.Command, args []string) error {
	var updates []slots.Update
	flags := cmd.Flags()
	if flags.Changed("title") {
		updates = append(updates, slots.SetTitle(slotTitle))
	}
	if flags.Changed("description") {
		updates = append(updates, slots.SetDescription(slotDescription))
	}
	if flags.Changed("type") {
		if !models.SlotType(strings.ToLower(strings.TrimSpace(slotType))).Valid() {
			return fmt.Errorf("unknown slot type %q", slotType)
		}
		updates = append(updates, slots.SetType(slotType))
	}
	if flags.Changed("notes") {
		updates = append(updates, slots.SetNotes(slotNotes))
	}
	if flags.Changed("request-only") {
		updates = append(updates, slots.SetRequestOnly(slotRequestOnly))
	}
	if len(updates) == 0 {
		return fmt.Errorf("nothing to change")
	}

	return withSession(cmd, args[0], func(s *editor.Session) error {
		if err := requireUnlocked(s.Manager(), args[1]); err != nil {
			return err
		}
		return s.Manager().UpdateSlotFields(args[1], updates...)
	})
}

func runSlotsList(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, _, cleanup, err := stores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	event, collection, err := store.LoadSlots(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printSlots(out, collection); err != nil {
		return err
	}
	return printValidation(out, collection, editor.WindowFor(*event))
}

func printSlots(out io.Writer, collection []models.Slot) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tEND\tTYPE\tTITLE\tSTATUS")
	for _, s := range collection {
		status := "open"
		switch {
		case s.IsBooked:
			status = "booked"
		case s.IsPending:
			status = "pending"
		case s.IsRequestOnly:
			status = "request-only"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.StartTime, s.EndTime, s.Type, s.Title, status)
	}
	return w.Flush()
}

func printValidation(out io.Writer, collection []models.Slot, window slots.Window) error {
	result := scheduling.NewValidator(logger).Validate(collection, window)
	for _, v := range append(result.Errors, result.Warnings...) {
		fmt.Fprintf(out, "%s: %s\n", v.Severity, v.Message)
	}
	return nil
}
