package middleware

import (
    "context"
    "net/http"

    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/presence"
    "github.com/inkround/inkround-backend/utils"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionAuth resolves the session token (X-Session-Token header, or the
// session_token cookie) into the live session and stores it on the request
// context. Requests with no live session are rejected.
func SessionAuth(tracker *presence.Tracker) mux.MiddlewareFunc {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            token := TokenFromRequest(r)
            if token == "" {
                utils.HandleError(w, responses.UnauthorizedError{Msg: "Session token required."})
                return
            }

            session, err := tracker.Lookup(r.Context(), token)
            if err != nil {
                utils.HandleError(w, responses.InternalServerError{Msg: "Error resolving session."})
                return
            }
            if session == nil {
                utils.HandleError(w, responses.UnauthorizedError{Msg: "Session expired or unknown. Please log in again."})
                return
            }

            ctx := context.WithValue(r.Context(), sessionContextKey, session)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// TokenFromRequest extracts the raw session token without validating it.
func TokenFromRequest(r *http.Request) string {
    if token := r.Header.Get("X-Session-Token"); token != "" {
        return token
    }
    if cookie, err := r.Cookie("session_token"); err == nil {
        return cookie.Value
    }
    return ""
}

// SessionFromContext returns the session placed by SessionAuth, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
    session, _ := ctx.Value(sessionContextKey).(*models.Session)
    return session
}
