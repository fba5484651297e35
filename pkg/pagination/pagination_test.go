package pagination

import (
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("expected buffered limit 11, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(c))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !parsed.CreatedAt.Equal(c.CreatedAt) || parsed.ID != c.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", parsed, c)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("%%%"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("bm90LWEtY3Vyc29y"); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected format error, got %v", err)
	}
	if _, err := ParseCursor(base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2024-03-01T10:00:00Z"}`))); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected missing id to be rejected, got %v", err)
	}
}

func TestEncodedCursorIsQuerySafe(t *testing.T) {
	for range 50 {
		encoded := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()})
		if url.QueryEscape(encoded) != encoded {
			t.Fatalf("cursor %q needs escaping", encoded)
		}
	}
}

func TestNextCursor(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Now().UTC()
	rows := []row{{uuid.New(), base}, {uuid.New(), base.Add(-time.Minute)}, {uuid.New(), base.Add(-2 * time.Minute)}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := NextCursor(rows, 2, key)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected 2 rows and a cursor, got %d %q", len(page), next)
	}
	decoded, err := ParseCursor(next)
	if err != nil || decoded.ID != rows[1].id {
		t.Fatalf("cursor should point at last returned row, got %+v %v", decoded, err)
	}

	page, next = NextCursor(rows, 5, key)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected final page without cursor, got %d %q", len(page), next)
	}
}
