package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kuitang/notes-log/internal/errs"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/s3client"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestBackup(t testing.TB) (*Service, *notes.Store, *notes.FakeClock, *s3client.Client) {
	t.Helper()
	store := notes.NewStore(filepath.Join(t.TempDir(), "notes.json"))
	clock := notes.NewFakeClock(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC))
	objects := s3client.TestClient(t, "notes-backup")
	return New(objects, store, "/nightly/", clock), store, clock, objects
}

func TestSnapshot_UploadsLogVerbatim(t *testing.T) {
	t.Parallel()
	svc, store, _, objects := newTestBackup(t)
	content := "{\"title\":\"groceries\",\"note\":\"milk\"}\ngarbage\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "nightly/20261014T093000.000000000Z.jsonl", snap.Key)
	require.Equal(t, int64(len(content)), snap.Size)

	stored, err := objects.GetObject(context.Background(), snap.Key)
	require.NoError(t, err)
	require.Equal(t, content, string(stored))
}

func TestSnapshot_MissingLogUploadsEmptyObject(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestBackup(t)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Zero(t, snap.Size)
}

func TestRestore_ReplacesLogAndDropsMalformedLines(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestBackup(t)
	ctx := context.Background()

	require.NoError(t, store.Append(notes.Record{"title": "a", "note": "1"}))
	require.NoError(t, os.WriteFile(store.Path(), append(readRaw(t, store), []byte("not json\n")...), 0o644))
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Append(notes.Record{"title": "b", "note": "2"}))

	n, err := svc.Restore(ctx, snap.Key)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "{\"note\":\"1\",\"title\":\"a\"}\n", string(readRaw(t, store)))
}

func TestRestore_UnknownKeyIsNotFound(t *testing.T) {
	t.Parallel()
	svc, store, _, _ := newTestBackup(t)
	require.NoError(t, store.Append(notes.Record{"title": "keep", "note": "me"}))
	before := readRaw(t, store)

	_, err := svc.Restore(context.Background(), "nightly/missing.jsonl")
	require.True(t, errs.Is(err, errs.NotFound), "got %v", err)
	require.Equal(t, before, readRaw(t, store))
}

func TestList_NewestFirstAndIgnoresForeignObjects(t *testing.T) {
	t.Parallel()
	svc, _, clock, objects := newTestBackup(t)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 3; i++ {
		snap, err := svc.Snapshot(ctx)
		require.NoError(t, err)
		keys = append(keys, snap.Key)
		clock.Advance(time.Minute)
	}
	require.NoError(t, objects.PutObject(ctx, "nightly/readme.txt", []byte("x"), "text/plain"))
	require.NoError(t, objects.PutObject(ctx, "nightly/old/1.jsonl", []byte("x"), ContentType))
	require.NoError(t, objects.PutObject(ctx, "weekly/1.jsonl", []byte("x"), ContentType))

	snaps, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	require.Equal(t, keys[2], snaps[0].Key)
	require.Equal(t, keys[0], snaps[2].Key)
	require.Equal(t, time.Date(2026, 10, 14, 9, 32, 0, 0, time.UTC), snaps[0].CreatedAt)
}

// =============================================================================
// Property: snapshot then restore reproduces every well-formed record
// =============================================================================

func TestSnapshotRestoreRoundtrip_Properties(t *testing.T) {
	t.Parallel()
	svc, store, clock, _ := newTestBackup(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		titles := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,12}`), 0, 8).Draw(rt, "titles")
		want := make([]notes.Record, 0, len(titles))
		for _, title := range titles {
			want = append(want, notes.Record{"title": title, "note": "body of " + title})
		}
		if err := store.SaveAll(want); err != nil {
			rt.Fatalf("SaveAll: %v", err)
		}

		clock.Advance(time.Second)
		snap, err := svc.Snapshot(ctx)
		if err != nil {
			rt.Fatalf("Snapshot: %v", err)
		}
		if err := store.SaveAll([]notes.Record{{"title": "clobber", "note": "x"}}); err != nil {
			rt.Fatalf("SaveAll: %v", err)
		}

		n, err := svc.Restore(ctx, snap.Key)
		if err != nil {
			rt.Fatalf("Restore: %v", err)
		}
		got, err := store.Load()
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		if n != len(want) || len(got) != len(want) {
			rt.Fatalf("restored %d/%d records, want %d", n, len(got), len(want))
		}
		for i := range want {
			if got[i].Title() != want[i].Title() || got[i].Body() != want[i].Body() {
				rt.Fatalf("record %d = %v, want %v", i, got[i], want[i])
			}
		}
	})
}

func readRaw(t testing.TB, store *notes.Store) []byte {
	t.Helper()
	data, err := store.Raw()
	require.NoError(t, err)
	return data
}
