package httpserver

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"steamtracker/steam-api/internal/audit"
	"steamtracker/steam-api/internal/auth"
)

type authUserResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
}

func registerAuthHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /auth/steam/login", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		target, err := deps.Auth.Begin(r.Context())
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "steam login redirect failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	})

	mux.HandleFunc("GET /auth/steam/return", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		session, err := deps.Auth.Complete(r.Context(), callbackURL(deps.Login.ReturnURL, r))
		if err != nil {
			deps.Logger.WarnContext(r.Context(), "steam login failed", "err", err)
			auditReq(deps.Audit, r, "", audit.ActionLoginFailed, audit.OutcomeFailure, "", err.Error())
			http.Redirect(w, r, deps.Login.FailureRedirect, http.StatusFound)
			return
		}
		auditReq(deps.Audit, r, session.SteamID, audit.ActionLogin, audit.OutcomeSuccess, session.ID, "")

		http.SetCookie(w, &http.Cookie{
			Name:     deps.Login.CookieName,
			Value:    session.Token,
			Path:     "/",
			MaxAge:   int(deps.Auth.SessionTTL().Seconds()),
			HttpOnly: true,
			Secure:   deps.Login.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, deps.Login.SuccessRedirect, http.StatusFound)
	})

	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		token := sessionToken(r, deps.Login.CookieName)
		if token == "" {
			writeJSON(w, http.StatusOK, authUserResponse{})
			return
		}
		session, err := deps.Auth.Check(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				writeJSON(w, http.StatusOK, authUserResponse{})
				return
			}
			deps.Logger.ErrorContext(r.Context(), "session check failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		user := session.User()
		writeJSON(w, http.StatusOK, authUserResponse{Authenticated: true, User: &user})
	})

	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		if token := sessionToken(r, deps.Login.CookieName); token != "" {
			session, err := deps.Auth.Logout(r.Context(), token)
			switch {
			case err == nil:
				auditReq(deps.Audit, r, session.SteamID, audit.ActionLogout, audit.OutcomeSuccess, session.ID, "")
			case errors.Is(err, auth.ErrInvalidSession):
			default:
				deps.Logger.ErrorContext(r.Context(), "logout failed", "err", err)
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     deps.Login.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   deps.Login.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	})
}

// callbackURL rebuilds the URL Steam redirected to from the configured
// return URL, so verification does not depend on proxy headers.
func callbackURL(returnURL string, r *http.Request) string {
	if r.URL.RawQuery == "" {
		return returnURL
	}
	return returnURL + "?" + r.URL.RawQuery
}

func sessionToken(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, steamID, action, outcome, sessionID, detail string) {
	parts := []string{
		"ip=" + clientIP(r),
		"ua=" + strings.TrimSpace(r.UserAgent()),
	}
	if sessionID != "" {
		parts = append(parts, "sid="+sessionID)
	}
	if strings.TrimSpace(detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(detail))
	}
	if a == nil {
		return
	}
	_ = a.Log(audit.Event{
		SteamID:   steamID,
		Action:    action,
		Outcome:   outcome,
		RequestID: requestIDFromContext(r.Context()),
		Detail:    strings.Join(parts, " | "),
	})
}
