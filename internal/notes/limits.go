package notes

import (
	"unicode/utf8"

	"github.com/kuitang/notes-log/internal/errs"
)

const (
	// MinV3TitleLength and MaxV3TitleLength bound v3 titles, counted in characters.
	MinV3TitleLength = 1
	MaxV3TitleLength = 100
)

// ValidateCreate checks the fields a scheme requires before anything is
// written. Body is the "note" field, or "content" under v2.
func ValidateCreate(scheme Scheme, title, body string) error {
	bodyField := KeyNote
	if scheme == SchemeV2 {
		bodyField = KeyContent
	}

	switch scheme {
	case SchemeLegacy:
		// The legacy title comes from the URL path and is never empty.
		if body == "" {
			return missingField(bodyField)
		}
		return nil
	case SchemeV1, SchemeV2:
		if title == "" {
			return missingField(KeyTitle)
		}
		if body == "" {
			return missingField(bodyField)
		}
		return nil
	case SchemeV3:
		n := utf8.RuneCountInString(title)
		if n < MinV3TitleLength || n > MaxV3TitleLength {
			return errs.Newf(errs.InvalidArgument, "The 'title' field must be between %d and %d characters", MinV3TitleLength, MaxV3TitleLength)
		}
		if body == "" {
			return missingField(bodyField)
		}
		return nil
	default:
		return errs.Newf(errs.InvalidArgument, "unknown scheme %q", scheme)
	}
}
