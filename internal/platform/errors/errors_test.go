package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	sentinel := New(CodeAccessDenied, "event not found or access denied")
	wrapped := Wrap(CodeAccessDenied, "guard rejected caller", stderrors.New("no row"))

	if !stderrors.Is(wrapped, sentinel) {
		t.Fatal("expected errors with equal codes to match")
	}
	if stderrors.Is(wrapped, New(CodeNotFound, "missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk gone")
	err := Wrap(CodeInternal, "persist grant", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeSessionInvalid, http.StatusUnauthorized},
		{CodeAccessDenied, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeOwnerUnremovable, http.StatusBadRequest},
		{CodePersonalGroupProtected, http.StatusBadRequest},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.want, got)
		}
	}

	if got := HTTPStatus(stderrors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("foreign error: expected 500, got %d", got)
	}
}
