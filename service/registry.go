package service

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"disorderbook/domain/book"
	"disorderbook/infra/feed"
)

var (
	ErrUnknownVenue  = errors.New("unknown venue")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Handle is the frontend's channel to one running engine. Requests are
// serialized by the mutex: one command in, one framed reply out.
type Handle struct {
	Venue  string
	Symbol string

	mu      sync.Mutex
	cmd     io.Writer
	replies *bufio.Reader
}

// BookEntry is one order row decoded from the binary book.
type BookEntry struct {
	Qty   uint32
	Price uint32
}

// Registry owns the mapping from (venue, symbol) to engine. Engines
// run in-process: each gets a dispatcher goroutine wired over pipes,
// speaking exactly the wire protocol, plus a feed pump that parses the
// event stream and broadcasts it on the hub.
type Registry struct {
	hub *feed.Hub[feed.Event]
	log *slog.Logger

	mu    sync.Mutex
	books map[string]map[string]*Handle

	acctMu   sync.Mutex
	acctIDs  map[string]int32
	nextAcct int32
}

func NewRegistry(hub *feed.Hub[feed.Event], log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		hub:   hub,
		log:   log,
		books: make(map[string]map[string]*Handle),
		// Account id 0 is reserved as the not-yet-assigned value.
		acctIDs:  make(map[string]int32),
		nextAcct: 1,
	}
}

// Open starts an engine for (venue, symbol) and registers its handle.
func (r *Registry) Open(venue, symbol string) *Handle {
	cmdR, cmdW := io.Pipe()
	repR, repW := io.Pipe()
	feedR, feedW := io.Pipe()

	eng := book.New(book.Config{Venue: venue, Symbol: symbol}, book.NewFeedWriter(feedW))
	d := NewDispatcher(eng, cmdR, repW, r.log)

	go func() {
		if err := d.Run(); err != nil {
			r.log.Error("engine stopped", "venue", venue, "symbol", symbol, "error", err)
		}
	}()
	go r.pumpFeed(feedR)

	h := &Handle{Venue: venue, Symbol: symbol, cmd: cmdW, replies: bufio.NewReader(repR)}

	r.mu.Lock()
	if r.books[venue] == nil {
		r.books[venue] = make(map[string]*Handle)
	}
	r.books[venue][symbol] = h
	r.mu.Unlock()

	r.log.Info("book opened", "venue", venue, "symbol", symbol)
	return h
}

func (r *Registry) lookup(venue, symbol string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.books[venue]
	if !ok {
		return nil, ErrUnknownVenue
	}
	h, ok := v[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return h, nil
}

// AccountID returns the dense id for an account name, assigning the
// next one on first sight. Ids start at 1; 0 never names an account.
func (r *Registry) AccountID(name string) int32 {
	r.acctMu.Lock()
	defer r.acctMu.Unlock()
	if id, ok := r.acctIDs[name]; ok {
		return id
	}
	id := r.nextAcct
	r.nextAcct++
	r.acctIDs[name] = id
	return id
}

// Request sends one command line and returns the framed reply body
// (everything before the END line, newlines preserved).
func (r *Registry) Request(venue, symbol, command string) (string, error) {
	h, err := r.lookup(venue, symbol)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.cmd, command); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	var sb strings.Builder
	for {
		line, err := h.replies.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read reply: %w", err)
		}
		if strings.TrimRight(line, "\n") == "END" {
			return sb.String(), nil
		}
		sb.WriteString(line)
	}
}

// RequestBook fetches and decodes the binary orderbook: bids then
// asks, each side closed by a zero message.
func (r *Registry) RequestBook(venue, symbol string) (bids, asks []BookEntry, err error) {
	h, err := r.lookup(venue, symbol)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.cmd, "ORDERBOOK_BINARY\n"); err != nil {
		return nil, nil, fmt.Errorf("send command: %w", err)
	}

	readSide := func() ([]BookEntry, error) {
		var side []BookEntry
		var msg [8]byte
		for {
			if _, err := io.ReadFull(h.replies, msg[:]); err != nil {
				return nil, fmt.Errorf("read book: %w", err)
			}
			qty := binary.BigEndian.Uint32(msg[:4])
			price := binary.BigEndian.Uint32(msg[4:])
			if qty == 0 {
				return side, nil
			}
			side = append(side, BookEntry{Qty: qty, Price: price})
		}
	}

	if bids, err = readSide(); err != nil {
		return nil, nil, err
	}
	if asks, err = readSide(); err != nil {
		return nil, nil, err
	}
	return bids, asks, nil
}

// pumpFeed parses the engine's framed event stream and broadcasts
// each message. Header shapes:
//
//	TICKER NONE <venue> <symbol>
//	EXECUTION <account> <venue> <symbol>
//
// followed by the JSON body and a line containing END.
func (r *Registry) pumpFeed(src io.Reader) {
	rd := bufio.NewReader(src)
	for {
		header, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(header)
		if len(fields) != 4 {
			continue
		}

		var body strings.Builder
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimRight(line, "\n") == "END" {
				break
			}
			body.WriteString(line)
		}

		ev := feed.Event{
			Venue:  fields[2],
			Symbol: fields[3],
			Body:   []byte(strings.TrimRight(body.String(), "\n")),
		}
		switch fields[0] {
		case "TICKER":
			ev.Kind = feed.KindTicker
		case "EXECUTION":
			ev.Kind = feed.KindExecution
			ev.Account = fields[1]
		default:
			continue
		}
		r.hub.Broadcast(ev)
	}
}
