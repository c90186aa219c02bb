package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("account: %w", ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: email required", ErrValidation), http.StatusBadRequest},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unavailable", fmt.Errorf("store: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("dial tcp 10.0.0.1:5432: %w", ErrUnavailable))

	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.NotContains(t, rr.Body.String(), "10.0.0.1")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","admin":true}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	assert.ErrorIs(t, err, ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	assert.Equal(t, "a@b.c", target.Email)
}
