package notes

import (
	"strings"
	"testing"

	"github.com/kuitang/notes-log/internal/errs"
	"pgregory.net/rapid"
)

func testValidateCreate_V3TitleBounds(t *rapid.T) {
	n := rapid.IntRange(0, MaxV3TitleLength+20).Draw(t, "len")
	char := rapid.SampledFrom([]string{"a", "é", "日"}).Draw(t, "char")
	title := strings.Repeat(char, n)

	err := ValidateCreate(SchemeV3, title, "body")
	valid := n >= MinV3TitleLength && n <= MaxV3TitleLength
	if valid && err != nil {
		t.Fatalf("title of %d chars rejected: %v", n, err)
	}
	if !valid && !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("title of %d chars: err=%v, want invalid_argument", n, err)
	}
}

func TestValidateCreate_V3TitleBounds(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidateCreate_V3TitleBounds)
}

func TestValidateCreate_RequiredFields(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scheme  Scheme
		title   string
		body    string
		wantMsg string
	}{
		{SchemeLegacy, "t", "", "The 'note' field is required in the JSON body"},
		{SchemeV1, "", "b", "The 'title' field is required in the JSON body"},
		{SchemeV1, "t", "", "The 'note' field is required in the JSON body"},
		{SchemeV2, "", "b", "The 'title' field is required in the JSON body"},
		{SchemeV2, "t", "", "The 'content' field is required in the JSON body"},
		{SchemeV3, "t", "", "The 'note' field is required in the JSON body"},
		{Scheme("v9"), "t", "b", `unknown scheme "v9"`},
	}
	for _, tc := range cases {
		err := ValidateCreate(tc.scheme, tc.title, tc.body)
		if !errs.Is(err, errs.InvalidArgument) {
			t.Errorf("%s(%q,%q): err=%v, want invalid_argument", tc.scheme, tc.title, tc.body, err)
			continue
		}
		if got := errs.MessageOf(err); got != tc.wantMsg {
			t.Errorf("%s(%q,%q): message=%q, want %q", tc.scheme, tc.title, tc.body, got, tc.wantMsg)
		}
	}

	for _, scheme := range []Scheme{SchemeLegacy, SchemeV1, SchemeV2, SchemeV3} {
		if err := ValidateCreate(scheme, "t", "b"); err != nil {
			t.Errorf("%s: valid input rejected: %v", scheme, err)
		}
	}
}
