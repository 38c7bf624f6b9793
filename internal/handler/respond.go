package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/chore"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
)

// Broadcaster fans change notifications out to a family's live clients.
type Broadcaster interface {
	Broadcast(familyID string, msg websocket.Message)
}

func broadcast(b Broadcaster, familyID string, msg websocket.Message) {
	if b != nil {
		b.Broadcast(familyID, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeError maps a domain error onto a status code. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, auth.ErrForbidden):
		status, msg = http.StatusForbidden, "not allowed"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, chore.ErrInvalidTransition):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrInsufficientFunds):
		status, msg = http.StatusBadRequest, "insufficient points"
	case errors.Is(err, store.ErrPointsOutOfRange):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		logger.Error(op, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
