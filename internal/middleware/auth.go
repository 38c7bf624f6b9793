package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/store"
)

// SessionToken returns the bearer token from the Authorization header, or
// the session cookie when no header is present.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(auth.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth resolves the session token to a member and populates the Actor.
// Missing, unknown and expired sessions get a JSON 401.
func RequireAuth(q store.Queries) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			sess, err := q.GetSessionByTokenHash(r.Context(), auth.HashToken(token))
			if err != nil || time.Now().After(sess.ExpiresAt) {
				unauthorized(w)
				return
			}

			member, err := q.GetMember(r.Context(), sess.MemberID)
			if err != nil || member.FamilyID != sess.FamilyID {
				unauthorized(w)
				return
			}

			a := auth.Actor{
				MemberID:  member.ID,
				FamilyID:  member.FamilyID,
				SessionID: sess.ID,
				IsParent:  member.IsParent,
			}

			ctx := auth.WithActor(r.Context(), a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects callers that are not a parent in their family.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parent access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
