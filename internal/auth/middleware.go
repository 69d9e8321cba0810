package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MrWong99/oralread/internal/observe"
)

// Require returns middleware that admits requests carrying a valid token for
// a principal holding one of roles. Missing or invalid tokens get 401, a
// role mismatch gets 403. The principal is stored in the request context.
func Require(v *Verifier, roles ...Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing token")
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				observe.Logger(r.Context()).Debug("token rejected", "err", err, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !p.HasAny(roles...) {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
