package notes

import (
	"errors"
	"fmt"

	"github.com/kuitang/notes-log/internal/errs"
)

// Record is one persisted log entry: a JSON object with at least a title and
// a body. Keys this package does not know about survive rewrites untouched.
type Record map[string]any

// Known record keys.
const (
	KeyTitle     = "title"
	KeyNote      = "note"
	KeyContent   = "content"
	KeyID        = "id"
	KeyTags      = "tags"
	KeyArchived  = "archived"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
)

// String returns the value at key when it is a JSON string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Title returns the record title, or "" when absent.
func (r Record) Title() string {
	return r.String(KeyTitle)
}

// Body returns the note body. Records written under the v2 shape may carry
// "content" instead of "note".
func (r Record) Body() string {
	if body, ok := r[KeyNote].(string); ok {
		return body
	}
	return r.String(KeyContent)
}

// ID returns the stored v2 identifier, or "" for records that never had one.
func (r Record) ID() string {
	return r.String(KeyID)
}

// Tags returns the string tags, skipping non-string entries.
func (r Record) Tags() []string {
	tags := []string{}
	switch v := r[KeyTags].(type) {
	case []string:
		tags = append(tags, v...)
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return tags
}

// Archived returns the archived flag, false when absent.
func (r Record) Archived() bool {
	b, _ := r[KeyArchived].(bool)
	return b
}

// Scheme is a version-specific addressing and projection convention.
type Scheme string

const (
	SchemeLegacy Scheme = "legacy"
	SchemeV1     Scheme = "v1"
	SchemeV2     Scheme = "v2"
	SchemeV3     Scheme = "v3"
)

// ErrV2UpdateUnavailable is returned by every v2 update. The v2 API ships
// with a broken PATCH that clients compare against v3.
var ErrV2UpdateUnavailable = errors.New("note update is not available in API v2")

// V1Note is the v1 projection.
type V1Note struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

// V2Note is the v2 projection. Timestamps are null for records that were not
// created through v2.
type V2Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Archived  bool     `json:"archived"`
	CreatedAt *string  `json:"created_at"`
	UpdatedAt *string  `json:"updated_at"`
}

// V3Note is the v3 projection. ID is the 1-based position in the log at the
// time of the read and shifts whenever an earlier record is removed.
type V3Note struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Note     string `json:"note"`
	Editable bool   `json:"editable"`
}

// V3List is the v3 list envelope.
type V3List struct {
	Version  string   `json:"version"`
	Count    int      `json:"count"`
	Notes    []V3Note `json:"notes"`
	Features []string `json:"features"`
}

// CreateV1Params carries a v1 create request.
type CreateV1Params struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

// CreateV2Params carries a v2 create request. ID is optional.
type CreateV2Params struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags,omitempty"`
	Archived bool     `json:"archived,omitempty"`
}

// UpdateV2Params carries a v2 partial update. All fields are optional.
type UpdateV2Params struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Archived *bool     `json:"archived,omitempty"`
}

// V3Params carries a v3 create or full update.
type V3Params struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

func notFoundTitle(title string) error {
	return errs.Newf(errs.NotFound, "Note '%s' not found", title)
}

func notFoundPosition(pos int) error {
	return errs.Newf(errs.NotFound, "Note with id %d not found", pos)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func missingField(field string) error {
	return errs.Newf(errs.InvalidArgument, "The '%s' field is required in the JSON body", field)
}
