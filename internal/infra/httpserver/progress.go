package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

func (r *Router) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.checkOrigin,
	}
}

// checkOrigin admits handshakes without an Origin header (non-browser
// clients) and browser origins listed in AllowedOrigins. With no list
// configured only same-host origins pass.
func (r *Router) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(r.opts.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, req.Host)
	}
	for _, o := range r.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// GET /v1/{tenant}/sessions/{sid}/progress (websocket)
// Streams session.Progress events until the client leaves or the session
// is closed.
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	tenant, sid := chi.URLParam(req, "tenant"), chi.URLParam(req, "sid")
	events, unsubscribe, err := r.svc.Subscribe(tenant, sid)
	if err != nil {
		return err
	}
	defer unsubscribe()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already answered the client
		r.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	// read pump: only control frames are expected, it ends when the
	// client goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					r.log.Debug("websocket closed", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case p, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return nil
			}
			if err := conn.WriteJSON(p); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}
