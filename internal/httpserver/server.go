package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"steamtracker/steam-api/internal/audit"
	"steamtracker/steam-api/internal/auth"
	"steamtracker/steam-api/internal/config"
	"steamtracker/steam-api/internal/steam"
)

type SteamService interface {
	PlayerSummary(ctx context.Context, steamID string) (json.RawMessage, error)
	PlayerStatus(ctx context.Context, steamID string) (steam.PlayerStatus, error)
	FriendList(ctx context.Context, steamID string) (json.RawMessage, error)
	OwnedGames(ctx context.Context, steamID string) (json.RawMessage, error)
	RecentlyPlayedGames(ctx context.Context, steamID string) (json.RawMessage, error)
	GameDetails(ctx context.Context, appID string) (json.RawMessage, error)
	AppList(ctx context.Context, query url.Values) (json.RawMessage, error)
	GameAchievements(ctx context.Context, appID string) (json.RawMessage, error)
	PlayerAchievements(ctx context.Context, steamID, appID string) (json.RawMessage, error)
	TopAchievements(ctx context.Context, steamID string, appIDs []string) (json.RawMessage, error)
	GlobalAchievementPercentages(ctx context.Context, appID string) (json.RawMessage, error)
}

type AuthService interface {
	Begin(ctx context.Context) (string, error)
	Complete(ctx context.Context, callbackURL string) (auth.Session, error)
	Check(ctx context.Context, token string) (auth.Session, error)
	Logout(ctx context.Context, token string) (auth.Session, error)
	SessionTTL() time.Duration
}

type AuditLogger interface {
	Log(e audit.Event) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SchemaChecker reports the applied schema version and whether a failed
// migration left it dirty.
type SchemaChecker interface {
	SchemaVersion(ctx context.Context) (version uint, dirty bool, err error)
}

// LoginConfig holds where the Steam login round trip sends the browser and
// how the session cookie is written.
type LoginConfig struct {
	ReturnURL       string
	SuccessRedirect string
	FailureRedirect string
	CookieName      string
	SecureCookie    bool
}

type Deps struct {
	Steam       SteamService
	Auth        AuthService
	Audit       AuditLogger
	DB          Pinger
	Schema      SchemaChecker
	Login       LoginConfig
	FrontendURL string
	Logger      *slog.Logger
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	handler := NewHandler(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      withMiddleware(handler, deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "hey")
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				deps.Logger.WarnContext(r.Context(), "readiness check failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		resp := map[string]string{"status": "ready"}
		if deps.Schema != nil {
			version, dirty, err := deps.Schema.SchemaVersion(ctx)
			if err != nil {
				deps.Logger.WarnContext(r.Context(), "schema version check failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "schema version unavailable")
				return
			}
			if dirty {
				deps.Logger.WarnContext(r.Context(), "schema is dirty", "schema_version", version)
				writeError(w, http.StatusServiceUnavailable, "schema version "+strconv.FormatUint(uint64(version), 10)+" is dirty")
				return
			}
			resp["schemaVersion"] = strconv.FormatUint(uint64(version), 10)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	registerAuthHandlers(mux, deps)
	registerSteamHandlers(mux, deps)

	return mux
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
