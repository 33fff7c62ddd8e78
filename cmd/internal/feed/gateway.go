package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"huddle/cmd/internal/room"
	"huddle/cmd/internal/session"
)

const (
	feedDefaultQueueSize = 256
	feedMinQueueSize     = 32

	feedDefaultWriteTimeout = 5 * time.Second
	feedDefaultPingEvery    = 30 * time.Second

	// Security defaults: origin required, localhost only.
	feedDefaultOriginRequired = true
	feedDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Gateway is the WebSocket entrypoint for the room change feed.
//
// It enforces origin policy, authenticates the session token, gates on room
// participation and ban status, then streams events until the peer leaves.
type Gateway struct {
	log    *slog.Logger
	hub    *Hub
	store  room.Store
	tokens session.TokenIssuer

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks; Accept authorizes
	// same-host origins by default but cross-origin needs OriginPatterns.
	originPatterns []string

	writeTimeout time.Duration
	pingEvery    time.Duration
	queueSize    int
}

// NewGateway constructs a gateway with secure defaults.
func NewGateway(log *slog.Logger, hub *Hub, store room.Store, tokens session.TokenIssuer) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	if store == nil {
		return nil, fmt.Errorf("feed: nil store")
	}
	if tokens == nil {
		return nil, session.ErrConfig
	}

	g := &Gateway{log: log, hub: hub, store: store, tokens: tokens}

	g.devInsecure = envBool("HUDDLE_FEED_DEV_INSECURE", false)
	g.originRequired = envBool("HUDDLE_FEED_ORIGIN_REQUIRED", feedDefaultOriginRequired)
	g.allowedOrigins = envCSV("HUDDLE_FEED_ALLOWED_ORIGINS", feedDefaultAllowedOrigins)
	g.originPatterns = originPatternsFromAllowed(g.allowedOrigins)

	g.writeTimeout = envDuration("HUDDLE_FEED_WRITE_TIMEOUT", feedDefaultWriteTimeout)
	g.pingEvery = envDuration("HUDDLE_FEED_PING_INTERVAL", feedDefaultPingEvery)

	g.queueSize = envInt("HUDDLE_FEED_SEND_QUEUE", feedDefaultQueueSize)
	if g.queueSize < feedMinQueueSize {
		g.queueSize = feedMinQueueSize
	}

	return g, nil
}

// Hub exposes the gateway's hub so the write path can publish into it.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// ServeHTTP upgrades the request and runs the push loop.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("feed.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	roomID := strings.TrimSpace(r.URL.Query().Get("room_id"))
	if roomID == "" {
		http.Error(w, "missing room_id", http.StatusBadRequest)
		return
	}

	// Browsers cannot set headers on WebSocket dials, so the token may
	// ride in the query string as well.
	token := bearerTokenFeed(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	now := time.Now().UTC()
	claims, err := g.tokens.Verify(token, now)
	if err != nil {
		g.log.Info("feed.reject.token", "err", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if _, err := g.store.GetRoom(r.Context(), roomID); err != nil {
		if room.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		g.log.Error("feed.room.lookup.fail", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	p, err := g.store.GetParticipant(r.Context(), roomID, claims.DeviceID)
	if err != nil {
		if room.IsNotFound(err) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		g.log.Error("feed.participant.lookup.fail", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p.IsBanned {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("feed.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	sub := g.hub.Subscribe(roomID, g.queueSize)
	defer g.hub.Unsubscribe(sub)

	g.log.Info("feed.open", "room_id", roomID, "device_id", claims.DeviceID, "session_id", sub.ID)

	// The feed is one-way: CloseRead discards client frames and cancels the
	// context when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(g.pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, g.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				g.log.Info("feed.ping.fail", "session_id", sub.ID, "err", err)
				return
			}
		case ev := <-sub.Send:
			if err := g.writeEvent(ctx, conn, ev); err != nil {
				g.log.Info("feed.write.fail", "session_id", sub.ID, "close_status", websocket.CloseStatus(err), "err", err)
				return
			}
		}
	}
}

func (g *Gateway) writeEvent(parent context.Context, conn *websocket.Conn, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, g.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, raw)
}

func bearerTokenFeed(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		parts := strings.SplitN(raw, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return fmt.Errorf("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return fmt.Errorf("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func originPatternsFromAllowed(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host.
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ---- env helpers ----

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSV(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
