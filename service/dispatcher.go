package service

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"disorderbook/domain/book"
)

/*
Dispatcher is the only write entry point into an engine.

It reads newline-terminated commands, runs each to completion against
the engine, and writes exactly one framed reply before reading the
next command. Replies end with a line containing END followed by a
flush; the binary orderbook is the one unframed reply.
*/

// ErrInputClosed is returned by Run when the command channel hits EOF.
// The engine cannot continue without its input, so callers treat this
// as fatal.
var ErrInputClosed = errors.New("command input closed")

type Dispatcher struct {
	eng *book.Engine
	in  *bufio.Reader
	out *bufio.Writer
	log *slog.Logger
}

func NewDispatcher(eng *book.Engine, in io.Reader, out io.Writer, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		eng: eng,
		in:  bufio.NewReader(in),
		out: bufio.NewWriter(out),
		log: log,
	}
}

// Run processes commands until the input closes, which is an error by
// definition: a well-behaved frontend never hangs up.
func (d *Dispatcher) Run() error {
	for {
		line, err := d.in.ReadString('\n')
		if line != "" {
			d.handle(line)
		}
		if err != nil {
			d.writeReply(`{"ok": false, "error": "Unexpected EOF on stdin. Quitting."}`)
			d.log.Error("command input closed", "venue", d.eng.Venue(), "symbol", d.eng.Symbol())
			return ErrInputClosed
		}
	}
}

func (d *Dispatcher) handle(line string) {
	tokens := strings.Fields(line)
	tok := func(i int) string {
		if i < len(tokens) {
			return tokens[i]
		}
		return ""
	}

	switch tok(0) {
	case "ORDER":
		o, err := d.eng.Place(tok(1), atoi(tok(2)), atoi(tok(3)), atoi(tok(4)), atoi(tok(5)), atoi(tok(6)))
		if err != nil {
			var adm *book.AdmissionError
			errors.As(err, &adm)
			d.writeReply(fmt.Sprintf(`{"ok": false, "error": %q}`, adm.Diagnostic()))
			return
		}
		d.log.Debug("order placed", "id", o.ID, "account", o.Account.Name)
		d.writeJSON(d.eng.OrderView(o))

	case "CANCEL":
		o, ok := d.eng.Cancel(atoi(tok(1)))
		if !ok {
			d.writeReply(`{"ok": false, "error": "No such ID"}`)
			return
		}
		d.writeJSON(d.eng.OrderView(o))

	case "STATUS":
		o := d.eng.Order(atoi(tok(1)))
		if o == nil {
			d.writeReply(`{"ok": false, "error": "No such ID"}`)
			return
		}
		d.writeJSON(d.eng.OrderView(o))

	case "STATUSALL":
		acct := d.eng.AccountByID(atoi(tok(1)))
		if acct == nil {
			d.writeReply(`{"ok": false, "error": "Account not known on this book"}`)
			return
		}
		views := make([]book.OrderView, 0, len(acct.Orders))
		for _, o := range acct.Orders {
			views = append(views, d.eng.OrderView(o))
		}
		d.writeJSON(struct {
			OK     bool             `json:"ok"`
			Venue  string           `json:"venue"`
			Orders []book.OrderView `json:"orders"`
		}{true, d.eng.Venue(), views})

	case "QUOTE":
		d.writeJSON(d.eng.QuoteView())

	case "ORDERBOOK_BINARY":
		// Raw payload, no frame marker.
		d.eng.WriteBookBinary(d.out)
		d.out.Flush()

	case "__ACC_FROM_ID__":
		o := d.eng.Order(atoi(tok(1)))
		if o == nil {
			d.writeReply("ERROR None")
			return
		}
		d.writeReply("OK " + o.Account.Name)

	case "__SCORES__":
		d.writeReply(d.eng.ScoresHTML())

	case "__DEBUG_MEMORY__":
		d.writeReply(d.eng.MemoryInfo())

	case "__TIMESTAMP__":
		d.writeReply(d.eng.Now())

	default:
		d.writeReply(`{"ok": false, "error": "Did not comprehend"}`)
	}
}

func (d *Dispatcher) writeJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		d.writeReply(`{"ok": false, "error": "unencodable reply"}`)
		return
	}
	d.out.Write(b)
	d.endMessage()
}

func (d *Dispatcher) writeReply(s string) {
	d.out.WriteString(s)
	d.endMessage()
}

func (d *Dispatcher) endMessage() {
	d.out.WriteString("\nEND\n")
	d.out.Flush()
}

// atoi mirrors the tolerant parsing of the wire protocol: anything
// unparseable is zero. Admission rejects a zero qty, direction or type
// as a silly value; a zero account id or price is accepted.
func atoi(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}
