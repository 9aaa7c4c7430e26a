// Package backup copies the note log to object storage and restores it.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kuitang/notes-log/internal/errs"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
	"github.com/kuitang/notes-log/internal/s3client"
)

// ContentType is stored with every snapshot object.
const ContentType = "application/x-ndjson"

// snapshotExt marks snapshot objects under the prefix.
const snapshotExt = ".jsonl"

// keyLayout sorts lexicographically in time order. Nanoseconds keep two
// snapshots taken in the same second apart.
const keyLayout = "20060102T150405.000000000Z"

// ObjectStore is the subset of s3client.Client used for snapshots.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]s3client.ObjectInfo, error)
}

// Snapshot describes one stored copy of the log.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service snapshots one Store into one bucket prefix.
type Service struct {
	objects ObjectStore
	store   *notes.Store
	prefix  string
	clock   notes.Clock
}

// New returns a backup service. A nil clock uses the system clock.
func New(objects ObjectStore, store *notes.Store, prefix string, clock notes.Clock) *Service {
	if clock == nil {
		clock = systemClock{}
	}
	return &Service{
		objects: objects,
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		clock:   clock,
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Snapshot uploads the log bytes as stored and returns the new snapshot.
// Malformed lines are uploaded too; they are dropped on restore.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	data, err := s.store.Raw()
	if err != nil {
		return Snapshot{}, err
	}

	now := s.clock.Now().UTC()
	key := path.Join(s.prefix, now.Format(keyLayout)+snapshotExt)
	if err := s.objects.PutObject(ctx, key, data, ContentType); err != nil {
		return Snapshot{}, fmt.Errorf("failed to upload snapshot: %w", err)
	}

	obs.Pkg("backup").Info("snapshot uploaded", "key", key, "bytes", len(data))
	return Snapshot{Key: key, Size: int64(len(data)), CreatedAt: now}, nil
}

// Restore replaces the log with the records of the snapshot at key and
// returns how many were written. Lines that do not decode are dropped, so a
// restored log is always clean.
func (s *Service) Restore(ctx context.Context, key string) (int, error) {
	data, err := s.objects.GetObject(ctx, key)
	if errors.Is(err, s3client.ErrObjectNotFound) {
		return 0, errs.Newf(errs.NotFound, "Snapshot '%s' not found", key)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to download snapshot: %w", err)
	}

	records, err := notes.DecodeLog(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	if err := s.store.SaveAll(records); err != nil {
		return 0, err
	}

	obs.Pkg("backup").Info("snapshot restored", "key", key, "records", len(records))
	return len(records), nil
}

// List returns the snapshots under the prefix, newest first.
func (s *Service) List(ctx context.Context) ([]Snapshot, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}
	objs, err := s.objects.ListObjects(ctx, listPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(objs))
	for _, obj := range objs {
		name := strings.TrimPrefix(obj.Key, listPrefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		created, err := time.Parse(keyLayout, strings.TrimSuffix(name, snapshotExt))
		if err != nil {
			created = obj.LastModified
		}
		out = append(out, Snapshot{Key: obj.Key, Size: obj.Size, CreatedAt: created})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}
