// Package notes implements the note log and the four addressing schemes
// layered on it: legacy and v1 by title, v2 by UUID, v3 by position.
package notes

import (
	"time"

	"github.com/kuitang/notes-log/internal/logutil"
	"github.com/kuitang/notes-log/internal/obs"
)

// V3Version is reported in the v3 list envelope.
const V3Version = "v3"

// V3Features is the static feature list of the v3 envelope.
var V3Features = []string{"create", "read", "update", "delete", "validation"}

// logTitleChars caps titles in log lines.
const logTitleChars = 80

// TimestampLayout is ISO-8601 UTC with second precision and a trailing Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service exposes note operations per scheme over a single Store.
type Service struct {
	store     *Store
	clock     Clock
	titles    TitleResolver
	uuids     UUIDResolver
	positions PositionalResolver
}

// NewService creates a note service. A nil clock uses the system clock.
func NewService(store *Store, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{
		store:     store,
		clock:     clock,
		titles:    TitleResolver{store: store},
		uuids:     UUIDResolver{store: store},
		positions: PositionalResolver{store: store},
	}
}

// Store returns the underlying log.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) logCreate(scheme Scheme, title string) {
	obs.Pkg("notes").Info("note created", "scheme", string(scheme), "title", logutil.TruncateForLog(title, logTitleChars))
}

// CreateLegacy appends {title, note}. Duplicate titles are allowed.
func (s *Service) CreateLegacy(title, note string) error {
	if err := ValidateCreate(SchemeLegacy, title, note); err != nil {
		return err
	}
	if err := s.store.Append(Record{KeyTitle: title, KeyNote: note}); err != nil {
		return storageErr("failed to create note", err)
	}
	s.logCreate(SchemeLegacy, title)
	return nil
}

// ListLegacy returns raw records as stored.
func (s *Service) ListLegacy() ([]Record, error) {
	return s.store.Load()
}

// DeleteLegacy removes every record titled title.
func (s *Service) DeleteLegacy(title string) error {
	removed, err := s.titles.Delete(title)
	if err != nil {
		return storageErr("failed to delete note", err)
	}
	if !removed {
		return notFoundTitle(title)
	}
	obs.Pkg("notes").Info("note deleted", "scheme", string(SchemeLegacy), "title", logutil.TruncateForLog(title, logTitleChars))
	return nil
}

// CreateV1 appends {title, note} and returns the v1 projection.
func (s *Service) CreateV1(params CreateV1Params) (V1Note, error) {
	if err := ValidateCreate(SchemeV1, params.Title, params.Note); err != nil {
		return V1Note{}, err
	}
	rec := Record{KeyTitle: params.Title, KeyNote: params.Note}
	if err := s.store.Append(rec); err != nil {
		return V1Note{}, storageErr("failed to create note", err)
	}
	s.logCreate(SchemeV1, params.Title)
	return projectV1(rec), nil
}

// ListV1 returns every record in the v1 projection.
func (s *Service) ListV1() ([]V1Note, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]V1Note, 0, len(records))
	for _, rec := range records {
		out = append(out, projectV1(rec))
	}
	return out, nil
}

// CreateV2 appends a record with id, tags, archived flag and timestamps.
// The body is stored under "note" so every scheme reads it back.
func (s *Service) CreateV2(params CreateV2Params) (V2Note, error) {
	if err := ValidateCreate(SchemeV2, params.Title, params.Content); err != nil {
		return V2Note{}, err
	}

	id := params.ID
	if id == "" {
		id = NewID()
	}
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	now := s.clock.Now().UTC().Format(TimestampLayout)

	rec := Record{
		KeyID:        id,
		KeyTitle:     params.Title,
		KeyNote:      params.Content,
		KeyTags:      tags,
		KeyArchived:  params.Archived,
		KeyCreatedAt: now,
		KeyUpdatedAt: now,
	}
	if err := s.store.Append(rec); err != nil {
		return V2Note{}, storageErr("failed to create note", err)
	}
	s.logCreate(SchemeV2, params.Title)
	return s.projectV2(rec), nil
}

// ListV2 returns every record in the v2 projection.
func (s *Service) ListV2() ([]V2Note, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]V2Note, 0, len(records))
	for _, rec := range records {
		out = append(out, s.projectV2(rec))
	}
	return out, nil
}

// UpdateV2 always fails without mutating the log.
func (s *Service) UpdateV2(id string, params UpdateV2Params) error {
	err := s.uuids.Update(id, params)
	obs.Pkg("notes").Warn("v2 update rejected", "id", id, "error", err)
	return err
}

// CreateV3 appends {title, note} and returns it with its current position.
func (s *Service) CreateV3(params V3Params) (V3Note, error) {
	if err := ValidateCreate(SchemeV3, params.Title, params.Note); err != nil {
		return V3Note{}, err
	}
	rec := Record{KeyTitle: params.Title, KeyNote: params.Note}
	if err := s.store.Append(rec); err != nil {
		return V3Note{}, storageErr("failed to create note", err)
	}
	records, err := s.store.Load()
	if err != nil {
		return V3Note{}, err
	}
	s.logCreate(SchemeV3, params.Title)
	return projectV3(len(records), rec), nil
}

// ListV3 returns the v3 envelope with positions computed from file order.
func (s *Service) ListV3() (V3List, error) {
	records, err := s.store.Load()
	if err != nil {
		return V3List{}, err
	}
	out := make([]V3Note, 0, len(records))
	for i, rec := range records {
		out = append(out, projectV3(i+1, rec))
	}
	return V3List{
		Version:  V3Version,
		Count:    len(out),
		Notes:    out,
		Features: append([]string(nil), V3Features...),
	}, nil
}

// GetV3 returns the record at pos.
func (s *Service) GetV3(pos int) (V3Note, error) {
	rec, err := s.positions.Get(pos)
	if err != nil {
		return V3Note{}, err
	}
	return projectV3(pos, rec), nil
}

// PreviewV3 renders the note at pos as an HTML page.
func (s *Service) PreviewV3(pos int) ([]byte, error) {
	rec, err := s.positions.Get(pos)
	if err != nil {
		return nil, err
	}
	return RenderPreview(rec.Title(), rec.Body())
}

// UpdateV3 replaces the record at pos. Out-of-range positions are not found
// regardless of the body.
func (s *Service) UpdateV3(pos int, params V3Params) (V3Note, error) {
	rec, err := s.positions.Update(pos, params.Title, params.Note, func() error {
		return ValidateCreate(SchemeV3, params.Title, params.Note)
	})
	if err != nil {
		return V3Note{}, err
	}
	obs.Pkg("notes").Info("note updated", "scheme", string(SchemeV3), "position", pos)
	return projectV3(pos, rec), nil
}

// DeleteV3 removes the record at pos and returns what was removed.
func (s *Service) DeleteV3(pos int) (V3Note, error) {
	rec, err := s.positions.Delete(pos)
	if err != nil {
		return V3Note{}, err
	}
	obs.Pkg("notes").Info("note deleted", "scheme", string(SchemeV3), "position", pos)
	return projectV3(pos, rec), nil
}

func projectV1(rec Record) V1Note {
	return V1Note{Title: rec.Title(), Note: rec.Body()}
}

func (s *Service) projectV2(rec Record) V2Note {
	return V2Note{
		ID:        s.uuids.ResolveID(rec),
		Title:     rec.Title(),
		Content:   rec.Body(),
		Tags:      rec.Tags(),
		Archived:  rec.Archived(),
		CreatedAt: optionalString(rec, KeyCreatedAt),
		UpdatedAt: optionalString(rec, KeyUpdatedAt),
	}
}

func projectV3(pos int, rec Record) V3Note {
	return V3Note{ID: pos, Title: rec.Title(), Note: rec.Body(), Editable: true}
}

func optionalString(rec Record, key string) *string {
	v, ok := rec[key].(string)
	if !ok {
		return nil
	}
	return &v
}
