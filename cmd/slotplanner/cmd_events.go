/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/models"
)

const cliTimeLayout = "2006-01-02 15:04"

var (
	eventName        string
	eventStart       string
	eventEnd         string
	eventLocation    string
	eventType        string
	eventRecurrence  string
	eventTimezone    string
	eventTags        []string
	occurrencesFrom  string
	occurrencesUntil string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage events",
}

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event",
	Long: `Create an event. Times use the form "YYYY-MM-DD HH:MM".

Examples:
  slotplanner events create --name "Block Party" --start "2026-07-11 18:00" --end "2026-07-11 23:00"
  slotplanner events create --name "Open Mic" --start "2026-07-06 19:00" --recurrence weekly
  slotplanner events create --name "Fair" --start "2026-07-11 10:00" --timezone Europe/Lisbon --tag market,food`,
	RunE: runEventsCreate,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events",
	RunE:  runEventsList,
}

var eventsOccurrencesCmd = &cobra.Command{
	Use:   "occurrences <event-id>",
	Short: "List dated instances of a recurring event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsOccurrences,
}

func init() {
	eventsCreateCmd.Flags().StringVar(&eventName, "name", "", "Event name")
	eventsCreateCmd.Flags().StringVar(&eventStart, "start", "", "Start, YYYY-MM-DD HH:MM")
	eventsCreateCmd.Flags().StringVar(&eventEnd, "end", "", "End, YYYY-MM-DD HH:MM")
	eventsCreateCmd.Flags().StringVar(&eventLocation, "location", "", "Venue")
	eventsCreateCmd.Flags().StringVar(&eventType, "type", "", "Event type (default in-person)")
	eventsCreateCmd.Flags().StringVar(&eventRecurrence, "recurrence", "", "none, daily, weekly, monthly or an RRULE")
	eventsCreateCmd.Flags().StringVar(&eventTimezone, "timezone", "", "IANA timezone of --start and --end (default SLOTPLANNER_TIMEZONE)")
	eventsCreateCmd.Flags().StringSliceVar(&eventTags, "tag", nil, "Tag, repeatable or comma separated")
	_ = eventsCreateCmd.MarkFlagRequired("name")
	_ = eventsCreateCmd.MarkFlagRequired("start")

	eventsOccurrencesCmd.Flags().StringVar(&occurrencesFrom, "from", "", "First day, YYYY-MM-DD (default event start)")
	eventsOccurrencesCmd.Flags().StringVar(&occurrencesUntil, "to", "", "Last day, YYYY-MM-DD (default 30 days after from)")

	eventsCmd.AddCommand(eventsCreateCmd, eventsListCmd, eventsOccurrencesCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsCreate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	tz := eventTimezone
	if tz == "" {
		tz = cfg.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid --timezone: %w", err)
	}
	start, err := time.ParseInLocation(cliTimeLayout, eventStart, loc)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	event := &models.Event{
		Name:       eventName,
		Location:   eventLocation,
		Type:       eventType,
		StartDate:  start,
		IsPublic:   true,
		Recurrence: eventRecurrence,
		Timezone:   tz,
		Tags:       eventTags,
	}
	if eventEnd != "" {
		end, err := time.ParseInLocation(cliTimeLayout, eventEnd, loc)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		event.EndDate = &end
	}

	ctx := cmd.Context()
	store, _, cleanup, err := stores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Create(ctx, event); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), event.ID)
	return nil
}

func runEventsList(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, _, cleanup, err := stores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := store.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tRECURRENCE")
	for _, e := range list {
		end := "-"
		if e.EndDate != nil {
			end = e.EndDate.In(e.Zone()).Format(cliTimeLayout)
		}
		recurrence := e.Recurrence
		if recurrence == "" {
			recurrence = "none"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.LocalStart().Format(cliTimeLayout), end, recurrence)
	}
	return w.Flush()
}

func runEventsOccurrences(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, _, cleanup, err := stores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	event, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	from := event.StartDate
	if occurrencesFrom != "" {
		if from, err = time.ParseInLocation("2006-01-02", occurrencesFrom, event.Zone()); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	to := from.AddDate(0, 0, 30)
	if occurrencesUntil != "" {
		day, err := time.ParseInLocation("2006-01-02", occurrencesUntil, event.Zone())
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = day.Add(24*time.Hour - time.Second)
	}

	occurrences, err := eventstore.Occurrences(*event, from, to)
	if err != nil {
		return err
	}
	for _, o := range occurrences {
		line := o.StartsAt.Format(cliTimeLayout)
		if o.EndsAt.After(o.StartsAt) {
			line += " - " + o.EndsAt.Format(cliTimeLayout)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
