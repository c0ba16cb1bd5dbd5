/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotplanner/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage slot templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates with their index",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete the template at index",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesDelete,
}

var templatesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all templates as YAML (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplatesExport,
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Append templates from a YAML document",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesImport,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesDeleteCmd, templatesExportCmd, templatesImportCmd)
	rootCmd.AddCommand(templatesCmd)
}

func openTemplates(cmd *cobra.Command) (*templates.Store, func(), error) {
	if err := loadConfig(); err != nil {
		return nil, nil, err
	}
	_, repo, cleanup, err := stores(cmd.Context())
	return repo, cleanup, err
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openTemplates(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := repo.List(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tSLOTS")
	for i, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i, t.Name, len(t.Slots))
	}
	return w.Flush()
}

func runTemplatesDelete(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[0])
	}
	repo, cleanup, err := openTemplates(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return repo.Delete(cmd.Context(), index)
}

func runTemplatesExport(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openTemplates(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var out io.Writer = cmd.OutOrStdout()
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := templates.Export(cmd.Context(), repo, out)
	if err != nil {
		return err
	}
	logger.Info().Int("templates", n).Msg("templates exported")
	return nil
}

func runTemplatesImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	repo, cleanup, err := openTemplates(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := templates.Import(cmd.Context(), repo, f)
	if err != nil {
		return fmt.Errorf("imported %d templates before failing: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates\n", n)
	return nil
}
