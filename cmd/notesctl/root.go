package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-log/internal/backup"
	"github.com/kuitang/notes-log/internal/config"
	"github.com/kuitang/notes-log/internal/errs"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
	"github.com/kuitang/notes-log/internal/s3client"
)

var (
	configPath string
	notesPath  string
	verbose    bool

	// cfg is loaded once per invocation by PersistentPreRunE.
	cfg *config.Config
)

// newObjectStore opens the snapshot bucket. Tests replace it.
var newObjectStore = func(ctx context.Context, cfg *config.Config) (backup.ObjectStore, error) {
	return s3client.New(ctx, cfg.S3Config())
}

var rootCmd = &cobra.Command{
	Use:           "notesctl",
	Short:         "Administer a notes JSON Lines log",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		obs.Init()
		if verbose {
			obs.SetLevel(slog.LevelDebug)
		} else {
			obs.SetLevel(slog.LevelWarn)
		}

		loaded, err := config.LoadConfig("", configPath)
		if err != nil {
			return err
		}
		if notesPath != "" {
			loaded.NotesPath = notesPath
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&notesPath, "notes", "", "Note log path (overrides NOTES_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func noteService() *notes.Service {
	return notes.NewService(notes.NewStore(cfg.NotesPath), nil)
}

func backupService(ctx context.Context) (*backup.Service, error) {
	if !cfg.BackupEnabled() {
		return nil, errs.New(errs.Unavailable, "snapshot storage is not configured (set BACKUP_BUCKET)")
	}
	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return backup.New(objects, notes.NewStore(cfg.NotesPath), cfg.Backup.Prefix, nil), nil
}
