package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/chore"
	"github.com/dukerupert/chorechamp/internal/store"
)

func TestWriteErrorStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		err     error
		status  int
		message string
	}{
		{auth.ErrForbidden, http.StatusForbidden, "not allowed"},
		{fmt.Errorf("chore %w", store.ErrNotFound), http.StatusNotFound, "chore not found"},
		{fmt.Errorf("member %q: %w", "Alex", store.ErrConflict), http.StatusConflict, `member "Alex": already exists`},
		{fmt.Errorf("cannot approve a completed chore: %w", chore.ErrInvalidTransition), http.StatusConflict, "cannot approve a completed chore: invalid transition"},
		{store.ErrInsufficientFunds, http.StatusBadRequest, "insufficient points"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, logger, "test", tt.err)

		if rec.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tt.message {
			t.Errorf("%v: error = %q, want %q", tt.err, body["error"], tt.message)
		}
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest("PATCH", "/", http.NoBody)
	var v memberRequest
	if err := decodeJSON(req, &v); err != nil {
		t.Errorf("empty body err = %v, want nil", err)
	}

	req = httptest.NewRequest("PATCH", "/", strings.NewReader("{"))
	if err := decodeJSON(req, &v); err == nil {
		t.Error("malformed body should fail")
	}
}
