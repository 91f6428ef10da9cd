package book

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Admission error codes, reported verbatim in protocol replies.
const (
	CodeTooManyOrders  = 1
	CodeSillyValue     = 2
	CodeTooHighAccount = 3
)

// AdmissionError carries the rejection code plus the submitted values
// for the diagnostic payload. Nothing is mutated and no order id is
// consumed when one of these is returned.
type AdmissionError struct {
	Code      int
	Account   string
	AccountID int32
	Qty       int32
	Price     int32
	Direction int32
	OrderType int32
}

func (e *AdmissionError) Error() string {
	switch e.Code {
	case CodeTooManyOrders:
		return "order id space exhausted"
	case CodeTooHighAccount:
		return "account id above cap"
	default:
		return "invalid order values"
	}
}

// Diagnostic formats the payload the wire protocol reports for a
// rejected order.
func (e *AdmissionError) Diagnostic() string {
	return fmt.Sprintf("Backend error %d (account = %s, account_int = %d, qty = %d, price = %d, direction = %d, orderType = %d)",
		e.Code, e.Account, e.AccountID, e.Qty, e.Price, e.Direction, e.OrderType)
}

type Config struct {
	Venue       string
	Symbol      string
	MaxOrders   int32 // 0 means DefaultMaxOrders
	MaxAccounts int32 // 0 means DefaultMaxAccounts
}

// Engine owns the full matching state for one (venue, symbol): clock,
// id generator, order store, fill log, ledger, book and quote. It is
// deliberately single-threaded; the caller feeds it one command at a
// time and each command runs to completion.
type Engine struct {
	venue  string
	symbol string

	clock  *Clock
	ids    *IDGen
	store  *OrderStore
	fills  *FillLog
	ledger *Ledger
	book   *Book
	quote  Quote
	emit   EventEmitter

	startTime string
}

func New(cfg Config, emit EventEmitter) *Engine {
	if cfg.MaxOrders == 0 {
		cfg.MaxOrders = DefaultMaxOrders
	}
	if cfg.MaxAccounts == 0 {
		cfg.MaxAccounts = DefaultMaxAccounts
	}
	if emit == nil {
		emit = NopEmitter{}
	}

	e := &Engine{
		venue:  cfg.Venue,
		symbol: cfg.Symbol,
		clock:  NewClock(),
		ids:    NewIDGen(cfg.MaxOrders),
		store:  NewOrderStore(),
		fills:  NewFillLog(),
		ledger: NewLedger(cfg.MaxAccounts),
		book:   NewBook(),
		emit:   emit,
	}
	e.startTime = e.clock.Now()
	e.quote = Quote{Bid: -1, Ask: -1, Last: -1, LastSize: -1, QuoteTime: e.startTime}
	return e
}

func (e *Engine) Venue() string  { return e.venue }
func (e *Engine) Symbol() string { return e.symbol }

// Now returns a fresh engine timestamp.
func (e *Engine) Now() string { return e.clock.Now() }

// Order returns the order with this id, or nil.
func (e *Engine) Order(id int32) *Order { return e.store.Get(id) }

// AccountByID returns the account in the given slot, or nil.
func (e *Engine) AccountByID(id int32) *Account { return e.ledger.Get(id) }

// Place admits, matches and books one order. The error, when non-nil,
// is always an *AdmissionError; in that case nothing changed.
func (e *Engine) Place(account string, acctID, qty, price, direction, orderType int32) (*Order, error) {
	fail := func(code int) error {
		return &AdmissionError{
			Code: code, Account: account, AccountID: acctID,
			Qty: qty, Price: price, Direction: direction, OrderType: orderType,
		}
	}

	if e.ids.Peek() >= e.ids.Max() {
		return nil, fail(CodeTooManyOrders)
	}
	if acctID < 0 || acctID >= e.ledger.Cap() {
		return nil, fail(CodeTooHighAccount)
	}
	if price < 0 || qty < 1 || (direction != int32(Buy) && direction != int32(Sell)) ||
		orderType < int32(Limit) || orderType > int32(IOC) {
		return nil, fail(CodeSillyValue)
	}

	acct := e.ledger.LookupOrCreate(account, acctID)
	id, _ := e.ids.Next()

	o := &Order{
		ID:          id,
		Direction:   Side(direction),
		Type:        OrderType(orderType),
		OriginalQty: qty,
		Qty:         qty,
		Price:       price,
		Account:     acct,
		TS:          e.clock.Now(),
		Open:        true,
	}
	e.store.Put(o)
	acct.Orders = append(acct.Orders, o)

	// FOK is all-or-nothing: a failed feasibility check skips matching
	// entirely and the order falls through to auto-close below.
	opp := e.book.opposite(o.Direction)
	if o.Type != FOK || opp.feasible(o.Qty, o.Price) {
		e.runMatch(o)
	}

	opp.cleanupHead()

	// Market orders are stored with price 0. Fill prices were already
	// recorded against the standing orders, so this only affects how
	// the order itself reads back.
	if o.Type == Market {
		o.Price = 0
	}

	if o.Open {
		if o.Type == Limit {
			e.book.side(o.Direction).insert(o)
		} else {
			o.Open = false
			o.Qty = 0
		}
	}

	// The book changed iff fills happened or a limit order arrived
	// (booked, or it crossed and shrank the other side).
	if o.TotalFilled > 0 || o.Type == Limit {
		e.remakeQuote()
		e.emit.Ticker(e.tickerView())
	}

	return o, nil
}

func (e *Engine) runMatch(incoming *Order) {
	opp := e.book.opposite(incoming.Direction)
	opp.matchable(incoming.Price, incoming.Type == Market, func(standing *Order) bool {
		e.cross(standing, incoming)
		return incoming.Open
	})
}

// cross trades one standing order against the incoming order at the
// standing price. Price improvement accrues to the incoming party.
func (e *Engine) cross(standing, incoming *Order) {
	ts := e.clock.Now()

	qty := standing.Qty
	if incoming.Qty < qty {
		qty = incoming.Qty
	}
	price := standing.Price

	standing.Qty -= qty
	standing.TotalFilled += qty
	incoming.Qty -= qty
	incoming.TotalFilled += qty

	fid := e.fills.Add(Fill{Price: price, Qty: qty, TS: ts})
	standing.Fills = append(standing.Fills, fid)
	incoming.Fills = append(incoming.Fills, fid)

	if standing.Qty == 0 {
		standing.Open = false
	}
	if incoming.Qty == 0 {
		incoming.Open = false
	}

	// Trades with self fill the orders but never move the ledger.
	if standing.Account.Name != incoming.Account.Name {
		e.ledger.ApplyTrade(standing.Account, qty, price, standing.Direction)
		e.ledger.ApplyTrade(incoming.Account, qty, price, incoming.Direction)
	}

	e.setQuoteLastInfo(price, qty)

	e.emit.Execution(e.executionView(standing, standing, incoming, qty, price, ts))
	e.emit.Execution(e.executionView(incoming, standing, incoming, qty, price, ts))
}

// Cancel closes a limit order and removes it from the book. Non-limit
// orders were auto-closed at placement, so the call returns them
// unchanged. The second return is false when no such id exists.
func (e *Engine) Cancel(id int32) (*Order, bool) {
	o := e.store.Get(id)
	if o == nil {
		return nil, false
	}
	if o.Type != Limit {
		return o, true
	}

	if e.book.side(o.Direction).cancel(o) {
		o.Open = false
		o.Qty = 0
		e.remakeQuote()
		e.emit.Ticker(e.tickerView())
	}
	return o, true
}

// WriteBookBinary streams the book in the binary wire format: for each
// side (bids first), every order best-to-worst and FIFO within level as
// big-endian uint32 qty then price, then an 8-byte zero terminator.
// Qty is never 0 for a live order, so the zero message is unambiguous.
func (e *Engine) WriteBookBinary(w io.Writer) error {
	var err error
	writeOrder := func(o *Order) {
		if err != nil {
			return
		}
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[:4], uint32(o.Qty))
		binary.BigEndian.PutUint32(buf[4:], uint32(o.Price))
		_, err = w.Write(buf[:])
	}
	var zero [8]byte
	e.book.bids.eachOrder(writeOrder)
	if err != nil {
		return err
	}
	if _, err = w.Write(zero[:]); err != nil {
		return err
	}
	e.book.asks.eachOrder(writeOrder)
	if err != nil {
		return err
	}
	_, err = w.Write(zero[:])
	return err
}
