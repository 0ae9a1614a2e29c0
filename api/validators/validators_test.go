package validators

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
)

type coursePayload struct {
	Title    string `json:"title" validate:"required,max=10"`
	Price    string `json:"price" validate:"omitempty,price"`
	VideoKey string `json:"video_key" validate:"omitempty,objectkey"`
}

func decode(t *testing.T, body string) (coursePayload, error) {
	t.Helper()
	var dest coursePayload
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"title":"Go","price":"19.99","video_key":"courses/go/intro.mp4"}`)
	require.NoError(t, err)
	require.Equal(t, "Go", got.Title)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(t, `{"title":"","price":"1.999","video_key":"../secret"}`)
	details := validationDetails(t, err)
	require.Equal(t, "is required", details["title"])
	require.Contains(t, details["price"], "two decimals")
	require.Equal(t, "must be a relative storage key", details["video_key"])
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	_, err := decode(t, `{"title":"Go","extra":1}`)
	require.Error(t, err)

	_, err = decode(t, `{"title":"Go"}{"title":"Again"}`)
	require.Error(t, err)

	_, err = decode(t, `   `)
	require.Error(t, err)
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	var dest coursePayload
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"Go in practice"}`))
	require.Error(t, DecodeJSONBodyLimit(req, &dest, 8))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/?processed=true&failed=maybe", nil)

	v, err := ParseQueryBool(req, "processed")
	require.NoError(t, err)
	require.True(t, *v)

	_, err = ParseQueryBool(req, "failed")
	require.Error(t, err)

	v, err = ParseQueryBool(req, "missing")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.Error(t, err)

	got, err := ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, got)
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "héllo", SanitizeString("  hé\x00llo\n ", 0))
	require.Equal(t, "hé", SanitizeString("héllo", 2))
}
