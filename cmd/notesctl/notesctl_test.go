package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kuitang/notes-log/internal/backup"
	"github.com/kuitang/notes-log/internal/config"
	"github.com/kuitang/notes-log/internal/s3client"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	listJSON, notesPath, configPath, verbose = false, "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddListDelete(t *testing.T) {
	t.Setenv("BACKUP_BUCKET", "")
	logPath := filepath.Join(t.TempDir(), "notes.json")

	out, err := execute(t, "--notes", logPath, "add", "groceries", "milk")
	require.NoError(t, err)
	require.Equal(t, "Note 'groceries' added successfully\n", out)

	out, err = execute(t, "--notes", logPath, "list")
	require.NoError(t, err)
	require.Equal(t, "1. groceries - milk\n", out)

	out, err = execute(t, "--notes", logPath, "list", "--json")
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Equal(t, []map[string]any{{"title": "groceries", "note": "milk"}}, records)

	out, err = execute(t, "--notes", logPath, "delete", "groceries")
	require.NoError(t, err)
	require.Equal(t, "Note 'groceries' deleted successfully\n", out)

	out, err = execute(t, "--notes", logPath, "list")
	require.NoError(t, err)
	require.Equal(t, "No notes found\n", out)

	_, err = execute(t, "--notes", logPath, "delete", "groceries")
	require.ErrorContains(t, err, "Note 'groceries' not found")
}

func TestList_ShowsFirstLineOfMultilineBody(t *testing.T) {
	t.Setenv("BACKUP_BUCKET", "")
	logPath := filepath.Join(t.TempDir(), "notes.json")

	_, err := execute(t, "--notes", logPath, "add", "todo", "milk\neggs\nbread")
	require.NoError(t, err)

	out, err := execute(t, "--notes", logPath, "list")
	require.NoError(t, err)
	require.Equal(t, "1. todo - milk ...\n", out)
}

func TestAdd_RejectsEmptyNote(t *testing.T) {
	t.Setenv("BACKUP_BUCKET", "")
	_, err := execute(t, "--notes", filepath.Join(t.TempDir(), "notes.json"), "add", "t", "")
	require.Error(t, err)
}

func TestBackup_RequiresBucket(t *testing.T) {
	t.Setenv("BACKUP_BUCKET", "")
	_, err := execute(t, "--notes", filepath.Join(t.TempDir(), "notes.json"), "backup")
	require.ErrorContains(t, err, "BACKUP_BUCKET")
}

func TestBackupSnapshotsRestore(t *testing.T) {
	t.Setenv("BACKUP_BUCKET", "notes-backup")
	t.Setenv("BACKUP_S3_ACCESS_KEY_ID", "test-key")
	t.Setenv("BACKUP_S3_SECRET_ACCESS_KEY", "test-secret")
	t.Setenv("BACKUP_PREFIX", "nightly")

	objects := s3client.TestClient(t, "notes-backup")
	prev := newObjectStore
	newObjectStore = func(context.Context, *config.Config) (backup.ObjectStore, error) { return objects, nil }
	t.Cleanup(func() { newObjectStore = prev })

	logPath := filepath.Join(t.TempDir(), "notes.json")
	_, err := execute(t, "--notes", logPath, "add", "keep", "me")
	require.NoError(t, err)

	out, err := execute(t, "--notes", logPath, "backup")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Snapshot uploaded: nightly/"), out)
	key := strings.Fields(strings.TrimPrefix(out, "Snapshot uploaded: "))[0]

	out, err = execute(t, "--notes", logPath, "snapshots")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, key+"\t"), out)

	_, err = execute(t, "--notes", logPath, "delete", "keep")
	require.NoError(t, err)

	out, err = execute(t, "--notes", logPath, "restore", key)
	require.NoError(t, err)
	require.Equal(t, "Restored 1 notes from "+key+"\n", out)

	out, err = execute(t, "--notes", logPath, "list")
	require.NoError(t, err)
	require.Equal(t, "1. keep - me\n", out)

	_, err = execute(t, "--notes", logPath, "restore", "nightly/missing.jsonl")
	require.ErrorContains(t, err, "not found")
}
