package httpserver

import (
	"net/http"
	"strings"
)

func registerSteamHandlers(mux *http.ServeMux, deps Deps) {
	handle := func(pattern string, fn func(r *http.Request) (any, error)) {
		mux.HandleFunc(pattern, proxyHandler(deps, fn))
	}

	handle("GET /api/steam/player/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.PlayerSummary(r.Context(), r.PathValue("steamId"))
	})
	handle("GET /api/steam/player/status/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.PlayerStatus(r.Context(), r.PathValue("steamId"))
	})
	handle("GET /api/steam/friends/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.FriendList(r.Context(), r.PathValue("steamId"))
	})
	handle("GET /api/steam/owned-games/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.OwnedGames(r.Context(), r.PathValue("steamId"))
	})
	handle("GET /api/steam/recent-games/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.RecentlyPlayedGames(r.Context(), r.PathValue("steamId"))
	})
	handle("GET /api/steam/game/{appId}", func(r *http.Request) (any, error) {
		return deps.Steam.GameDetails(r.Context(), r.PathValue("appId"))
	})
	handle("GET /api/steam/apps", func(r *http.Request) (any, error) {
		return deps.Steam.AppList(r.Context(), r.URL.Query())
	})
	handle("GET /api/steam/game-achievements/{appId}", func(r *http.Request) (any, error) {
		return deps.Steam.GameAchievements(r.Context(), r.PathValue("appId"))
	})
	handle("GET /api/steam/player-achievements/{steamId}/{appId}", func(r *http.Request) (any, error) {
		return deps.Steam.PlayerAchievements(r.Context(), r.PathValue("steamId"), r.PathValue("appId"))
	})
	handle("GET /api/steam/top-achievements/{steamId}", func(r *http.Request) (any, error) {
		return deps.Steam.TopAchievements(r.Context(), r.PathValue("steamId"), splitAppIDs(r.URL.Query().Get("appIds")))
	})
	handle("GET /api/steam/global-achievements/{appId}", func(r *http.Request) (any, error) {
		return deps.Steam.GlobalAchievementPercentages(r.Context(), r.PathValue("appId"))
	})
}

// proxyHandler answers with the upstream result, or 500 and the error text.
func proxyHandler(deps Deps, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Steam == nil {
			writeError(w, http.StatusServiceUnavailable, "steam service unavailable")
			return
		}
		out, err := fn(r)
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "steam request failed",
				"path", r.URL.Path,
				"request_id", requestIDFromContext(r.Context()),
				"err", err,
			)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func splitAppIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
