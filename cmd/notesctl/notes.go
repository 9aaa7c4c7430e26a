package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kuitang/notes-log/internal/notes"
	"github.com/spf13/cobra"
)

// listPreviewLines bounds how much of a multi-line body the text listing shows.
const listPreviewLines = 1

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record in the log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := noteService().ListLegacy()
		if err != nil {
			return fmt.Errorf("listing notes: %w", err)
		}

		out := cmd.OutOrStdout()
		if listJSON {
			encoder := json.NewEncoder(out)
			encoder.SetEscapeHTML(false)
			encoder.SetIndent("", "  ")
			return encoder.Encode(records)
		}

		if len(records) == 0 {
			fmt.Fprintln(out, "No notes found")
			return nil
		}
		for i, rec := range records {
			preview := strings.ReplaceAll(notes.ContentPreview(rec.Body(), listPreviewLines), "\n", " ")
			fmt.Fprintf(out, "%d. %s - %s\n", i+1, rec.Title(), preview)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [title] [note]",
	Short: "Append a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := noteService().CreateLegacy(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' added successfully\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [title]",
	Short: "Delete every note with the given title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := noteService().DeleteLegacy(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note '%s' deleted successfully\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, deleteCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output raw records as JSON")
}
