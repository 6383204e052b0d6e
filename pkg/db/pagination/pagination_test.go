package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != "42" || cursor.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected cursor %+v", cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "e30"} {
		if _, err := DecodeCursor(token); err != ErrInvalidPageToken {
			t.Fatalf("expected ErrInvalidPageToken for %q, got %v", token, err)
		}
	}
}

func TestTrim(t *testing.T) {
	rows := []int{5, 4, 3}
	page, info, err := Trim(rows, 2, func(v int) Cursor {
		return Cursor{ID: string(rune('0' + v)), CreatedAt: "t"}
	})
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if len(page) != 2 || !info.HasMore || info.NextPageToken == "" {
		t.Fatalf("unexpected page %v info %+v", page, info)
	}

	page, info, _ = Trim(rows, 5, func(v int) Cursor { return Cursor{} })
	if len(page) != 3 || info.HasMore {
		t.Fatalf("expected full page without more, got %v %+v", page, info)
	}
}

func TestLimit(t *testing.T) {
	if (Pagination{}).Limit() != DefaultPageSize {
		t.Fatalf("expected default page size")
	}
	if (Pagination{PageSize: 1000}).Limit() != MaxPageSize {
		t.Fatalf("expected clamp to max")
	}
}
