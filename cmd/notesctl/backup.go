package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of the log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := backupService(cmd.Context())
		if err != nil {
			return err
		}
		snap, err := svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot uploaded: %s (%d bytes)\n", snap.Key, snap.Size)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [key]",
	Short: "Replace the log with a snapshot",
	Long:  `Restore overwrites the log with the records of a snapshot. Lines that are not JSON objects are dropped.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := backupService(cmd.Context())
		if err != nil {
			return err
		}
		n, err := svc.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d notes from %s\n", n, args[0])
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := backupService(cmd.Context())
		if err != nil {
			return err
		}
		snaps, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No snapshots found")
			return nil
		}
		for _, snap := range snaps {
			fmt.Fprintf(out, "%s\t%d\t%s\n", snap.Key, snap.Size, snap.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd, snapshotsCmd)
}
