package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC), ID: uuid.New()}
	decoded, err := ParseCursor(EncodeCursor(original))
	require.NoError(t, err)
	require.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	require.Equal(t, original.ID, decoded.ID)
}

func TestParseCursorInvalid(t *testing.T) {
	cursor, err := ParseCursor("")
	require.NoError(t, err)
	require.Nil(t, cursor)

	_, err = ParseCursor("not-base64!")
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(1000))
	require.Equal(t, 7, NormalizeLimit(7))
}

func TestTrim(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, cursorOf)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	decoded, err := ParseCursor(next)
	require.NoError(t, err)
	require.Equal(t, rows[1].id, decoded.ID)

	page, next = Trim(rows[:2], 2, cursorOf)
	require.Len(t, page, 2)
	require.Empty(t, next)
}
