package notes

import (
	"github.com/google/uuid"
	"github.com/kuitang/notes-log/internal/errs"
)

// legacyIDNamespace seeds derived v2 ids. uuid.NewSHA1 over it is RFC 4122
// version 5, so other implementations reproduce the same id from the same
// title and body. Derived ids are not guaranteed collision-free.
var legacyIDNamespace = uuid.NameSpaceDNS

// TitleResolver addresses records by title (legacy and v1).
type TitleResolver struct {
	store *Store
}

// Delete removes every record whose title equals title and reports whether
// any matched. The log is only rewritten when something matched.
func (r TitleResolver) Delete(title string) (bool, error) {
	records, err := r.store.Load()
	if err != nil {
		return false, err
	}

	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Title() != title {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := r.store.SaveAll(kept); err != nil {
		return false, err
	}
	return true, nil
}

// UUIDResolver addresses records by v2 id.
type UUIDResolver struct {
	store *Store
}

// DeriveID returns the stable id of a record that was stored without one.
func DeriveID(title, body string) string {
	return uuid.NewSHA1(legacyIDNamespace, []byte(title+body)).String()
}

// NewID returns a random id for a v2 create without a client-supplied one.
func NewID() string {
	return uuid.New().String()
}

// ResolveID returns the stored id, or the derived id when none is stored.
func (UUIDResolver) ResolveID(rec Record) string {
	if id := rec.ID(); id != "" {
		return id
	}
	return DeriveID(rec.Title(), rec.Body())
}

// Update never succeeds and never touches the log, whether or not id exists.
func (UUIDResolver) Update(id string, _ UpdateV2Params) error {
	return errs.Wrap(errs.Internal, "Failed to update note "+id, ErrV2UpdateUnavailable)
}

// PositionalResolver addresses records by 1-based position in the current
// log. Positions are recomputed on every load, so a position read by one
// client can point at a different record after another client deletes.
type PositionalResolver struct {
	store *Store
}

func (r PositionalResolver) load(pos int) ([]Record, error) {
	records, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if pos < 1 || pos > len(records) {
		return nil, notFoundPosition(pos)
	}
	return records, nil
}

// Get returns the record at pos.
func (r PositionalResolver) Get(pos int) (Record, error) {
	records, err := r.load(pos)
	if err != nil {
		return nil, err
	}
	return records[pos-1], nil
}

// Update replaces the record at pos with {title, note}, dropping any other
// keys it carried, and rewrites the log. validate runs after the position
// check so an out-of-range position is reported as not found.
func (r PositionalResolver) Update(pos int, title, note string, validate func() error) (Record, error) {
	records, err := r.load(pos)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(); err != nil {
			return nil, err
		}
	}

	rec := Record{KeyTitle: title, KeyNote: note}
	records[pos-1] = rec
	if err := r.store.SaveAll(records); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record at pos and rewrites the log.
func (r PositionalResolver) Delete(pos int) (Record, error) {
	records, err := r.load(pos)
	if err != nil {
		return nil, err
	}

	removed := records[pos-1]
	records = append(records[:pos-1], records[pos:]...)
	if err := r.store.SaveAll(records); err != nil {
		return nil, err
	}
	return removed, nil
}
