package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"disorderbook/infra/feed"
	"disorderbook/service"
)

// Protocol error replies. All are sent with HTTP 200: the transport
// worked, the request did not.
const (
	heartbeatOK   = `{"ok": true, "error": ""}`
	unknownPath   = `{"ok": false, "error": "Unknown path"}`
	unknownVenue  = `{"ok": false, "error": "Unknown venue"}`
	unknownSymbol = `{"ok": false, "error": "Venue is known but symbol is not"}`
	badJSON       = `{"ok": false, "error": "Failed to parse incoming JSON"}`
	urlMismatch   = `{"ok": false, "error": "Venue or symbol in URL did not match that in POST"}`
	missingField  = `{"ok": false, "error": "Missing key or unacceptable value in POST"}`
)

// orderRequest is the POST body for placing an order. Stock is an
// alias for Symbol and wins when both are present.
type orderRequest struct {
	Symbol    string `json:"symbol"`
	Stock     string `json:"stock"`
	Venue     string `json:"venue"`
	Direction string `json:"direction"`
	OrderType string `json:"orderType"`
	Account   string `json:"account"`
	Qty       int32  `json:"qty"`
	Price     int32  `json:"price"`
}

// Server is the HTTP and WebSocket surface over the book registry.
type Server struct {
	books   *service.Registry
	hub     *feed.Hub[feed.Event]
	log     *slog.Logger
	metrics *Metrics
	wsBuf   int
}

func NewServer(books *service.Registry, hub *feed.Hub[feed.Event], metrics *Metrics, wsBuf int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if wsBuf <= 0 {
		wsBuf = 64
	}
	return &Server{books: books, hub: hub, log: log, metrics: metrics, wsBuf: wsBuf}
}

// Handler returns the full route set, metrics endpoint included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.route)
	return mux
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.Inc()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "ob" || parts[1] != "api" {
		io.WriteString(w, unknownPath)
		return
	}
	rest := parts[2:]

	switch {
	case len(rest) == 1 && rest[0] == "heartbeat":
		io.WriteString(w, heartbeatOK)

	case len(rest) == 4 && rest[0] == "venues" && rest[2] == "stocks":
		s.handleOrderbook(w, rest[1], rest[3])

	case len(rest) == 5 && rest[0] == "venues" && rest[2] == "stocks" && rest[4] == "quote":
		s.relay(w, rest[1], rest[3], "QUOTE\n")

	case len(rest) == 5 && rest[0] == "venues" && rest[2] == "stocks" && rest[4] == "scores":
		s.handleScores(w, rest[1], rest[3])

	case len(rest) == 5 && rest[0] == "venues" && rest[2] == "stocks" && rest[4] == "orders" && r.Method == http.MethodPost:
		s.handlePlace(w, r, rest[1], rest[3])

	case len(rest) == 6 && rest[0] == "venues" && rest[2] == "stocks" && rest[4] == "orders":
		command := fmt.Sprintf("STATUS %d\n", atoi(rest[5]))
		if r.Method == http.MethodDelete {
			command = fmt.Sprintf("CANCEL %d\n", atoi(rest[5]))
		}
		s.relay(w, rest[1], rest[3], command)

	case len(rest) == 7 && rest[0] == "ws" && rest[2] == "venues" && rest[4] == "tickertape" && rest[5] == "stocks":
		s.serveTickertape(w, r, rest[3], rest[6])

	case len(rest) == 7 && rest[0] == "ws" && rest[2] == "venues" && rest[4] == "executions" && rest[5] == "stocks":
		s.serveExecutions(w, r, rest[1], rest[3], rest[6])

	default:
		io.WriteString(w, unknownPath)
	}
}

// relay sends one command to the named book and writes the framed
// reply body straight through.
func (s *Server) relay(w http.ResponseWriter, venue, symbol, command string) {
	res, err := s.books.Request(venue, symbol, command)
	if err != nil {
		io.WriteString(w, lookupError(err))
		return
	}
	io.WriteString(w, res)
}

func (s *Server) handleScores(w http.ResponseWriter, venue, symbol string) {
	res, err := s.books.Request(venue, symbol, "__SCORES__\n")
	if err != nil {
		io.WriteString(w, lookupError(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, res)
}

// handleOrderbook renders the orderbook JSON from the engine's binary
// book. The engine protocol has no JSON book verb on purpose; the
// decode belongs out here.
func (s *Server) handleOrderbook(w http.ResponseWriter, venue, symbol string) {
	bids, asks, err := s.books.RequestBook(venue, symbol)
	if err != nil {
		io.WriteString(w, lookupError(err))
		return
	}

	type bookRow struct {
		Price uint32 `json:"price"`
		Qty   uint32 `json:"qty"`
		IsBuy bool   `json:"isBuy"`
	}
	view := struct {
		OK     bool      `json:"ok"`
		Venue  string    `json:"venue"`
		Symbol string    `json:"symbol"`
		TS     string    `json:"ts"`
		Bids   []bookRow `json:"bids"`
		Asks   []bookRow `json:"asks"`
	}{
		OK:     true,
		Venue:  venue,
		Symbol: symbol,
		TS:     time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
		Bids:   make([]bookRow, 0, len(bids)),
		Asks:   make([]bookRow, 0, len(asks)),
	}
	for _, b := range bids {
		view.Bids = append(view.Bids, bookRow{Price: b.Price, Qty: b.Qty, IsBuy: true})
	}
	for _, a := range asks {
		view.Asks = append(view.Asks, bookRow{Price: a.Price, Qty: a.Qty, IsBuy: false})
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		io.WriteString(w, badJSON)
		return
	}
	w.Write(out)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request, venue, symbol string) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		io.WriteString(w, badJSON)
		return
	}

	// Fill venue and symbol from the URL when the body leaves them out.
	if req.Venue == "" {
		req.Venue = venue
	}
	if req.Symbol == "" && req.Stock == "" {
		req.Symbol = symbol
	}
	// stock is an alias of symbol and takes precedence.
	if req.Stock != "" {
		req.Symbol = req.Stock
	}

	if req.Venue != venue || req.Symbol != symbol {
		io.WriteString(w, urlMismatch)
		return
	}
	if req.Venue == "" || req.Symbol == "" || req.Account == "" || req.Qty == 0 ||
		req.Direction == "" || req.OrderType == "" {
		io.WriteString(w, missingField)
		return
	}

	// Unrecognized strings map to 0, which the engine rejects.
	var direction int32
	switch req.Direction {
	case "buy":
		direction = 1
	case "sell":
		direction = 2
	}

	var orderType int32
	switch req.OrderType {
	case "limit":
		orderType = 1
	case "market":
		orderType = 2
	case "fok", "fill-or-kill":
		orderType = 3
	case "ioc", "immediate-or-cancel":
		orderType = 4
	}

	acctID := s.books.AccountID(req.Account)
	command := fmt.Sprintf("ORDER %s %d %d %d %d %d\n",
		req.Account, acctID, req.Qty, req.Price, direction, orderType)

	res, err := s.books.Request(venue, symbol, command)
	if err != nil {
		io.WriteString(w, lookupError(err))
		return
	}
	s.metrics.OrdersPlaced.Inc()
	io.WriteString(w, res)
}

func lookupError(err error) string {
	switch err {
	case service.ErrUnknownVenue:
		return unknownVenue
	case service.ErrUnknownSymbol:
		return unknownSymbol
	default:
		return fmt.Sprintf(`{"ok": false, "error": %q}`, err.Error())
	}
}

func atoi(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}
