package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"steamtracker/steam-api/internal/config"
)

const tracerName = "steamtracker/steam-api/internal/steam"

// Client talks to the Steam Web API and the Steam Store API. Every call goes
// upstream; nothing is cached or retried.
type Client struct {
	apiKey     string
	webURL     string
	storeURL   string
	httpClient *http.Client
	log        *slog.Logger
	tracer     trace.Tracer
}

// New creates a client. A nil httpClient gets one with the configured timeout.
func New(cfg config.SteamConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		apiKey:     cfg.APIKey,
		webURL:     strings.TrimRight(cfg.WebAPIBaseURL, "/"),
		storeURL:   strings.TrimRight(cfg.StoreBaseURL, "/"),
		httpClient: httpClient,
		log:        logger.With("component", "steam"),
		tracer:     otel.Tracer(tracerName),
	}
}

// PlayerSummary returns the upstream player object verbatim.
func (c *Client) PlayerSummary(ctx context.Context, steamID string) (json.RawMessage, error) {
	return c.firstPlayer(ctx, "GetPlayerSummaries", steamID)
}

// PlayerProfile returns the display fields of a player summary.
func (c *Client) PlayerProfile(ctx context.Context, steamID string) (PlayerProfile, error) {
	const op = "GetPlayerSummaries"
	raw, err := c.firstPlayer(ctx, op, steamID)
	if err != nil {
		return PlayerProfile{}, err
	}
	var p PlayerProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return PlayerProfile{}, &UpstreamError{Op: op, ID: steamID, Err: fmt.Errorf("decode player: %w", err)}
	}
	return p, nil
}

// PlayerStatus derives a player's presence from the summary.
func (c *Client) PlayerStatus(ctx context.Context, steamID string) (PlayerStatus, error) {
	const op = "GetPlayerSummaries"
	raw, err := c.firstPlayer(ctx, op, steamID)
	if err != nil {
		return PlayerStatus{}, err
	}
	var p playerPresence
	if err := json.Unmarshal(raw, &p); err != nil {
		return PlayerStatus{}, &UpstreamError{Op: op, ID: steamID, Err: fmt.Errorf("decode player: %w", err)}
	}
	return p.status(), nil
}

func (c *Client) firstPlayer(ctx context.Context, op, steamID string) (json.RawMessage, error) {
	q := c.keyed()
	q.Set("steamids", steamID)

	var body struct {
		Response struct {
			Players []json.RawMessage `json:"players"`
		} `json:"response"`
	}
	if err := c.get(ctx, op, steamID, c.webURL+"/ISteamUser/GetPlayerSummaries/v2/", q, &body); err != nil {
		return nil, err
	}
	if len(body.Response.Players) == 0 {
		return nil, &UpstreamError{Op: op, ID: steamID, Err: fmt.Errorf("no player: %w", ErrMissingData)}
	}
	return body.Response.Players[0], nil
}

// FriendList returns friendslist.friends.
func (c *Client) FriendList(ctx context.Context, steamID string) (json.RawMessage, error) {
	const op = "GetFriendList"
	q := c.keyed()
	q.Set("steamid", steamID)

	var body struct {
		FriendsList struct {
			Friends json.RawMessage `json:"friends"`
		} `json:"friendslist"`
	}
	if err := c.get(ctx, op, steamID, c.webURL+"/ISteamUser/GetFriendList/v1/", q, &body); err != nil {
		return nil, err
	}
	return requireField(op, steamID, "friendslist.friends", body.FriendsList.Friends)
}

// OwnedGames returns response.games, free games and app info included.
func (c *Client) OwnedGames(ctx context.Context, steamID string) (json.RawMessage, error) {
	const op = "GetOwnedGames"
	q := c.keyed()
	q.Set("steamid", steamID)
	q.Set("include_appinfo", "true")
	q.Set("include_played_free_games", "true")
	return c.responseField(ctx, op, steamID, c.webURL+"/IPlayerService/GetOwnedGames/v1/", q, "games")
}

// RecentlyPlayedGames returns response.games for the last two weeks.
func (c *Client) RecentlyPlayedGames(ctx context.Context, steamID string) (json.RawMessage, error) {
	const op = "GetRecentlyPlayedGames"
	q := c.keyed()
	q.Set("steamid", steamID)
	return c.responseField(ctx, op, steamID, c.webURL+"/IPlayerService/GetRecentlyPlayedGames/v1/", q, "games")
}

// GameDetails returns the store data object for one app.
func (c *Client) GameDetails(ctx context.Context, appID string) (json.RawMessage, error) {
	const op = "GetAppDetails"
	q := url.Values{}
	q.Set("appids", appID)

	var body map[string]struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, op, appID, c.storeURL+"/api/appdetails", q, &body); err != nil {
		return nil, err
	}
	entry, ok := body[appID]
	if !ok || !entry.Success {
		return nil, &UpstreamError{Op: op, ID: appID, Err: fmt.Errorf("app not found: %w", ErrMissingData)}
	}
	return requireField(op, appID, "data", entry.Data)
}

// AppList returns one page of the store catalog. Caller query parameters are
// forwarded as is, except that they cannot replace the API key.
func (c *Client) AppList(ctx context.Context, query url.Values) (json.RawMessage, error) {
	const op = "GetAppList"
	q := url.Values{}
	for k, vs := range query {
		if k == "key" {
			continue
		}
		q[k] = append([]string(nil), vs...)
	}
	q.Set("key", c.apiKey)

	var body struct {
		Response json.RawMessage `json:"response"`
	}
	if err := c.get(ctx, op, "", c.webURL+"/IStoreService/GetAppList/v1/", q, &body); err != nil {
		return nil, err
	}
	return requireField(op, "", "response", body.Response)
}

// GameAchievements returns the achievement definitions of an app.
func (c *Client) GameAchievements(ctx context.Context, appID string) (json.RawMessage, error) {
	const op = "GetGameAchievements"
	q := c.keyed()
	q.Set("appid", appID)
	return c.responseField(ctx, op, appID, c.webURL+"/IPlayerService/GetGameAchievements/v1/", q, "achievements")
}

// PlayerAchievements returns playerstats for one player and app.
func (c *Client) PlayerAchievements(ctx context.Context, steamID, appID string) (json.RawMessage, error) {
	const op = "GetPlayerAchievements"
	q := c.keyed()
	q.Set("steamid", steamID)
	q.Set("appid", appID)

	var body struct {
		PlayerStats json.RawMessage `json:"playerstats"`
	}
	if err := c.get(ctx, op, steamID, c.webURL+"/ISteamUserStats/GetPlayerAchievements/v1/", q, &body); err != nil {
		return nil, err
	}
	return requireField(op, steamID, "playerstats", body.PlayerStats)
}

// TopAchievements returns response.games for the given apps, one appids
// parameter per app.
func (c *Client) TopAchievements(ctx context.Context, steamID string, appIDs []string) (json.RawMessage, error) {
	const op = "GetTopAchievementsForGames"
	q := c.keyed()
	q.Set("steamid", steamID)
	for _, id := range appIDs {
		q.Add("appids", id)
	}
	return c.responseField(ctx, op, steamID, c.webURL+"/IPlayerService/GetTopAchievementsForGames/v1/", q, "games")
}

// GlobalAchievementPercentages needs no API key.
func (c *Client) GlobalAchievementPercentages(ctx context.Context, appID string) (json.RawMessage, error) {
	const op = "GetGlobalAchievementPercentagesForApp"
	q := url.Values{}
	q.Set("gameid", appID)

	var body struct {
		Percentages struct {
			Achievements json.RawMessage `json:"achievements"`
		} `json:"achievementpercentages"`
	}
	if err := c.get(ctx, op, appID, c.webURL+"/ISteamUserStats/GetGlobalAchievementPercentagesForApp/v2/", q, &body); err != nil {
		return nil, err
	}
	return requireField(op, appID, "achievementpercentages.achievements", body.Percentages.Achievements)
}

func (c *Client) keyed() url.Values {
	q := url.Values{}
	q.Set("key", c.apiKey)
	return q
}

func (c *Client) responseField(ctx context.Context, op, id, endpoint string, q url.Values, field string) (json.RawMessage, error) {
	var body struct {
		Response map[string]json.RawMessage `json:"response"`
	}
	if err := c.get(ctx, op, id, endpoint, q, &body); err != nil {
		return nil, err
	}
	return requireField(op, id, "response."+field, body.Response[field])
}

func (c *Client) get(ctx context.Context, op, id, endpoint string, q url.Values, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "steam."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("steam.op", op), attribute.String("steam.id", id))
	start := time.Now()
	status := 0
	defer func() {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upstream failure")
		}
		span.End()
		c.log.DebugContext(ctx, "steam call", "op", op, "id", id, "status", status, "duration", time.Since(start), "err", err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return &UpstreamError{Op: op, ID: id, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, ID: id, Err: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Op: op, ID: id, StatusCode: status, Err: fmt.Errorf("read body: %w", err)}
	}
	if status < 200 || status > 299 {
		return &UpstreamError{Op: op, ID: id, StatusCode: status}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &UpstreamError{Op: op, ID: id, StatusCode: status, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func requireField(op, id, field string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &UpstreamError{Op: op, ID: id, Err: fmt.Errorf("%s: %w", field, ErrMissingData)}
	}
	return raw, nil
}

// redactKey strips the API key from transport errors, which quote the URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
