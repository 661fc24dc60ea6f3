package httpapi

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/keepwarm/internal/domain"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(strings.TrimSpace(u.Host), strings.TrimSpace(r.Host))
		},
	}
}

// handleStream pushes every new outcome as a JSON message. ?target=<id>
// narrows the stream to one target.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	filter := domain.TargetID(r.URL.Query().Get("target"))
	if filter != "" {
		if _, err := s.Ctl.Get(filter); err != nil {
			s.writeError(w, err)
			return
		}
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outcomes, cancel := s.Ctl.Subscribe(streamBuffer)
	defer cancel()
	s.Logger.Debug("stream_opened", zap.String("remote", r.RemoteAddr), zap.String("target_id", string(filter)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			if filter != "" && o.TargetID != filter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(o); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-done:
			s.Logger.Debug("stream_closed", zap.String("remote", r.RemoteAddr))
			return
		case <-s.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
			return
		}
	}
}
