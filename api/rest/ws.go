package rest

import (
	"net/http"

	"github.com/gorilla/websocket"

	"disorderbook/infra/feed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// serveTickertape streams ticker messages for one (venue, symbol) to a
// websocket client.
func (s *Server) serveTickertape(w http.ResponseWriter, r *http.Request, venue, symbol string) {
	s.serveFeed(w, r, func(ev feed.Event) bool {
		return ev.Kind == feed.KindTicker && ev.Venue == venue && ev.Symbol == symbol
	})
}

// serveExecutions streams one account's execution messages for one
// (venue, symbol).
func (s *Server) serveExecutions(w http.ResponseWriter, r *http.Request, account, venue, symbol string) {
	s.serveFeed(w, r, func(ev feed.Event) bool {
		return ev.Kind == feed.KindExecution && ev.Account == account &&
			ev.Venue == venue && ev.Symbol == symbol
	})
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, want func(feed.Event) bool) {
	// Subscribe before the handshake completes so nothing published
	// right after the client connects can be missed.
	sub := s.hub.Subscribe(s.wsBuf)
	defer s.hub.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.WSClients.Inc()
	defer s.metrics.WSClients.Dec()

	// Drain the read side so client close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if !want(ev) {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ev.Body); err != nil {
				return
			}
		}
	}
}
