package book

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type recordEmitter struct {
	execs []ExecutionView
	ticks []TickerView
	seq   []string
}

func (r *recordEmitter) Execution(ev ExecutionView) {
	r.execs = append(r.execs, ev)
	r.seq = append(r.seq, "execution")
}

func (r *recordEmitter) Ticker(tv TickerView) {
	r.ticks = append(r.ticks, tv)
	r.seq = append(r.seq, "ticker")
}

func newTestEngine() (*Engine, *recordEmitter) {
	rec := &recordEmitter{}
	return New(Config{Venue: "TESTEX", Symbol: "FOOBAR"}, rec), rec
}

func mustPlace(t *testing.T, e *Engine, account string, acctID, qty, price, dir, typ int32) *Order {
	t.Helper()
	o, err := e.Place(account, acctID, qty, price, dir, typ)
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	return o
}

func checkOrderInvariant(t *testing.T, o *Order) {
	t.Helper()
	if o.Qty+o.TotalFilled != o.OriginalQty {
		t.Errorf("order %d: qty %d + filled %d != original %d", o.ID, o.Qty, o.TotalFilled, o.OriginalQty)
	}
	if o.Open != (o.Qty > 0) {
		t.Errorf("order %d: open=%v with qty=%d", o.ID, o.Open, o.Qty)
	}
}

// ---------------- Placement and matching ----------------

func TestSimpleCross(t *testing.T) {
	e, _ := newTestEngine()

	buy := mustPlace(t, e, "A", 1, 100, 5000, 1, 1)
	if !buy.Open {
		t.Fatal("first order should rest on the book")
	}

	sell := mustPlace(t, e, "B", 2, 100, 5000, 2, 1)

	if buy.Open || sell.Open {
		t.Error("both orders should be closed after the cross")
	}
	if buy.TotalFilled != 100 || sell.TotalFilled != 100 {
		t.Errorf("filled %d/%d, want 100/100", buy.TotalFilled, sell.TotalFilled)
	}
	if len(buy.Fills) != 1 || len(sell.Fills) != 1 || buy.Fills[0] != sell.Fills[0] {
		t.Error("both orders should share one fill")
	}

	q := e.QuoteView()
	if q.Bid != nil || q.Ask != nil {
		t.Error("book should be empty after the cross")
	}
	if q.Last == nil || *q.Last != 5000 || *q.LastSize != 100 {
		t.Error("last trade info wrong")
	}
	checkOrderInvariant(t, buy)
	checkOrderInvariant(t, sell)
}

func TestPriceImprovementGoesToIncoming(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	sell := mustPlace(t, e, "B", 2, 10, 90, 2, 1)

	f := e.fills.Get(sell.Fills[0])
	if f.Price != 100 || f.Qty != 10 {
		t.Errorf("trade at %d x %d, want standing price 100 x 10", f.Price, f.Qty)
	}

	a := e.AccountByID(1)
	b := e.AccountByID(2)
	if a.Cents != -1000 || b.Cents != 1000 {
		t.Errorf("cash A=%d B=%d, want -1000/+1000", a.Cents, b.Cents)
	}
	if a.Shares != 10 || b.Shares != -10 {
		t.Errorf("shares A=%d B=%d", a.Shares, b.Shares)
	}
}

func TestPartialFillRespectsFIFO(t *testing.T) {
	e, _ := newTestEngine()

	first := mustPlace(t, e, "A", 1, 50, 100, 1, 1)
	second := mustPlace(t, e, "B", 2, 50, 100, 1, 1)
	incoming := mustPlace(t, e, "C", 3, 70, 100, 2, 1)

	if first.TotalFilled != 50 || first.Open {
		t.Errorf("first in line should fill completely, got %d open=%v", first.TotalFilled, first.Open)
	}
	if second.TotalFilled != 20 || !second.Open || second.Qty != 30 {
		t.Errorf("second: filled=%d qty=%d open=%v", second.TotalFilled, second.Qty, second.Open)
	}
	if incoming.TotalFilled != 70 || incoming.Open {
		t.Errorf("incoming: filled=%d open=%v", incoming.TotalFilled, incoming.Open)
	}

	q := e.QuoteView()
	if q.Bid == nil || *q.Bid != 100 || q.BidSize != 30 {
		t.Errorf("quote bid wrong after partial fill")
	}
	checkOrderInvariant(t, first)
	checkOrderInvariant(t, second)
	checkOrderInvariant(t, incoming)
}

func TestIOCDiscardsRemainder(t *testing.T) {
	e, _ := newTestEngine()

	o := mustPlace(t, e, "A", 1, 100, 50, 1, 4)

	if o.Open || o.TotalFilled != 0 || o.Qty != 0 {
		t.Errorf("IOC on empty book: open=%v filled=%d qty=%d", o.Open, o.TotalFilled, o.Qty)
	}
	if e.book.bids.first != nilRef {
		t.Error("IOC must not rest on the book")
	}
}

func TestIOCPartialFill(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 30, 100, 2, 1)
	o := mustPlace(t, e, "B", 2, 100, 100, 1, 4)

	if o.TotalFilled != 30 || o.Open || o.Qty != 0 {
		t.Errorf("IOC should take 30 and discard the rest: filled=%d qty=%d open=%v", o.TotalFilled, o.Qty, o.Open)
	}
}

func TestFOKRejectedWhenInfeasible(t *testing.T) {
	e, _ := newTestEngine()

	s1 := mustPlace(t, e, "A", 1, 30, 100, 2, 1)
	s2 := mustPlace(t, e, "B", 2, 30, 101, 2, 1)

	o := mustPlace(t, e, "C", 3, 80, 101, 1, 3)

	if o.TotalFilled != 0 || o.Open {
		t.Errorf("infeasible FOK must not trade: filled=%d open=%v", o.TotalFilled, o.Open)
	}
	if s1.TotalFilled != 0 || s2.TotalFilled != 0 {
		t.Error("book must be untouched by a rejected FOK")
	}
	q := e.QuoteView()
	if q.AskDepth != 60 {
		t.Errorf("askDepth = %d, want 60", q.AskDepth)
	}
}

func TestFOKFillsCompletelyWhenFeasible(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 30, 100, 2, 1)
	mustPlace(t, e, "B", 2, 30, 101, 2, 1)

	o := mustPlace(t, e, "C", 3, 60, 101, 1, 3)

	if o.TotalFilled != 60 || o.Open {
		t.Errorf("feasible FOK should fill completely: filled=%d open=%v", o.TotalFilled, o.Open)
	}
}

func TestFOKAtomicity(t *testing.T) {
	e, _ := newTestEngine()
	mustPlace(t, e, "A", 1, 25, 100, 2, 1)

	for _, qty := range []int32{10, 25, 26, 100} {
		o := mustPlace(t, e, "B", 2, qty, 100, 1, 3)
		if o.TotalFilled != 0 && o.TotalFilled != o.OriginalQty {
			t.Errorf("FOK qty=%d partially filled: %d", qty, o.TotalFilled)
		}
	}
}

func TestMarketOrderIgnoresPriceAndStoresZero(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 9999, 2, 1)
	o := mustPlace(t, e, "B", 2, 20, 1, 1, 2)

	if o.TotalFilled != 10 {
		t.Errorf("market buy should take the 9999 ask, filled=%d", o.TotalFilled)
	}
	if o.Price != 0 {
		t.Errorf("market order stored price = %d, want 0", o.Price)
	}
	if o.Open || o.Qty != 0 {
		t.Error("market remainder must be discarded")
	}
	// The fill itself keeps the standing price.
	if f := e.fills.Get(o.Fills[0]); f.Price != 9999 {
		t.Errorf("fill price = %d, want 9999", f.Price)
	}
}

func TestSelfTradeFillsButSkipsLedger(t *testing.T) {
	e, _ := newTestEngine()

	buy := mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	sell := mustPlace(t, e, "A", 1, 10, 100, 2, 1)

	if buy.TotalFilled != 10 || sell.TotalFilled != 10 {
		t.Error("self-trade should still fill both orders")
	}
	a := e.AccountByID(1)
	if a.Shares != 0 || a.Cents != 0 {
		t.Errorf("self-trade moved the ledger: shares=%d cents=%d", a.Shares, a.Cents)
	}
	q := e.QuoteView()
	if q.Last == nil || *q.Last != 100 || *q.LastSize != 10 {
		t.Error("self-trade should still update last trade info")
	}
}

func TestSharesZeroSumAcrossAccounts(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 50, 100, 1, 1)
	mustPlace(t, e, "B", 2, 30, 100, 2, 1)
	mustPlace(t, e, "C", 3, 40, 99, 2, 2)

	var total int64
	e.ledger.Each(func(a *Account) { total += int64(a.Shares) })
	if total != 0 {
		t.Errorf("share changes sum to %d, want 0", total)
	}
}

// ---------------- Admission errors ----------------

func TestAdmissionRejectsSillyValues(t *testing.T) {
	e, _ := newTestEngine()

	cases := []struct {
		qty, price, dir, typ int32
	}{
		{0, 100, 1, 1},
		{-5, 100, 1, 1},
		{10, -1, 1, 1},
		{10, 100, 0, 1},
		{10, 100, 3, 1},
		{10, 100, 1, 0},
		{10, 100, 1, 5},
	}
	for _, c := range cases {
		_, err := e.Place("A", 1, c.qty, c.price, c.dir, c.typ)
		var adm *AdmissionError
		if !errors.As(err, &adm) || adm.Code != CodeSillyValue {
			t.Errorf("qty=%d price=%d dir=%d typ=%d: got %v, want silly value", c.qty, c.price, c.dir, c.typ, err)
		}
	}
	if e.ids.Peek() != 0 {
		t.Error("rejected orders must not consume ids")
	}
}

func TestAdmissionRejectsHighAccount(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.Place("A", DefaultMaxAccounts, 10, 100, 1, 1)
	var adm *AdmissionError
	if !errors.As(err, &adm) || adm.Code != CodeTooHighAccount {
		t.Errorf("got %v, want too-high-account", err)
	}
}

func TestAdmissionRejectsWhenIDsExhausted(t *testing.T) {
	rec := &recordEmitter{}
	e := New(Config{Venue: "V", Symbol: "S", MaxOrders: 1}, rec)

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	_, err := e.Place("A", 1, 10, 100, 1, 1)

	var adm *AdmissionError
	if !errors.As(err, &adm) || adm.Code != CodeTooManyOrders {
		t.Errorf("got %v, want too-many-orders", err)
	}
}

func TestAdmissionErrorDiagnostic(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.Place("A", 1, 0, 100, 1, 1)
	var adm *AdmissionError
	if !errors.As(err, &adm) {
		t.Fatal("expected admission error")
	}
	want := "Backend error 2 (account = A, account_int = 1, qty = 0, price = 100, direction = 1, orderType = 1)"
	if adm.Diagnostic() != want {
		t.Errorf("diagnostic = %q", adm.Diagnostic())
	}
}

// ---------------- Cancel ----------------

func TestCancelRestingOrder(t *testing.T) {
	e, rec := newTestEngine()

	o := mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	ticksBefore := len(rec.ticks)

	got, ok := e.Cancel(o.ID)
	if !ok || got != o {
		t.Fatal("cancel should return the order")
	}
	if o.Open || o.Qty != 0 {
		t.Error("cancelled order should be closed with qty 0")
	}
	if e.book.bids.first != nilRef {
		t.Error("book should be empty after cancel")
	}
	if len(rec.ticks) != ticksBefore+1 {
		t.Error("cancel of a booked order should emit one ticker")
	}
	q := e.QuoteView()
	if q.Bid != nil || q.BidDepth != 0 {
		t.Error("quote should reflect the empty book")
	}
}

func TestCancelUnknownID(t *testing.T) {
	e, _ := newTestEngine()

	if _, ok := e.Cancel(0); ok {
		t.Error("cancel of unknown id should report false")
	}
	if _, ok := e.Cancel(-1); ok {
		t.Error("cancel of negative id should report false")
	}
}

func TestCancelNonLimitIsNoop(t *testing.T) {
	e, rec := newTestEngine()

	o := mustPlace(t, e, "A", 1, 10, 100, 1, 4)
	ticksBefore := len(rec.ticks)

	got, ok := e.Cancel(o.ID)
	if !ok || got != o {
		t.Fatal("cancel should still return the order")
	}
	if len(rec.ticks) != ticksBefore {
		t.Error("cancelling an auto-closed order must not emit a ticker")
	}
}

func TestCancelTwiceIsIdempotent(t *testing.T) {
	e, rec := newTestEngine()

	o := mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	e.Cancel(o.ID)
	ticks := len(rec.ticks)

	if _, ok := e.Cancel(o.ID); !ok {
		t.Error("second cancel should still find the order")
	}
	if len(rec.ticks) != ticks {
		t.Error("second cancel must not emit another ticker")
	}
}

// ---------------- Events ----------------

func TestCrossEmitsTwoExecutionsThenTicker(t *testing.T) {
	e, rec := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	rec.execs = nil
	rec.ticks = nil
	rec.seq = nil
	mustPlace(t, e, "B", 2, 10, 100, 2, 1)

	if len(rec.execs) != 2 {
		t.Fatalf("got %d executions, want 2", len(rec.execs))
	}
	if got := strings.Join(rec.seq, ","); got != "execution,execution,ticker" {
		t.Errorf("event order = %s, want both executions before the ticker", got)
	}
	if rec.execs[0].Account != "A" || rec.execs[1].Account != "B" {
		t.Error("standing account's execution should come first")
	}
	if len(rec.ticks) != 1 {
		t.Errorf("got %d tickers, want 1", len(rec.ticks))
	}

	ev := rec.execs[0]
	if ev.StandingID != 0 || ev.IncomingID != 1 || ev.Price != 100 || ev.Filled != 10 {
		t.Errorf("execution fields wrong: %+v", ev)
	}
	if !ev.StandingComplete || !ev.IncomingComplete {
		t.Error("both sides completed in this cross")
	}
}

func TestUnfilledIOCEmitsNoTicker(t *testing.T) {
	e, rec := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 4)

	if len(rec.ticks) != 0 {
		t.Error("an IOC that neither fills nor books changes nothing; no ticker")
	}
}

func TestBookedLimitEmitsTicker(t *testing.T) {
	e, rec := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)

	if len(rec.ticks) != 1 {
		t.Errorf("got %d tickers, want 1", len(rec.ticks))
	}
	q := rec.ticks[0].Quote
	if q.Bid == nil || *q.Bid != 100 || q.BidSize != 10 || q.BidDepth != 10 {
		t.Errorf("ticker quote wrong: %+v", q)
	}
}

// ---------------- Quote ----------------

func TestQuoteOmitsAbsentFields(t *testing.T) {
	e, _ := newTestEngine()

	q := e.QuoteView()
	if q.Bid != nil || q.Ask != nil || q.Last != nil || q.LastSize != nil || q.LastTrade != "" {
		t.Error("fresh book should omit bid/ask/last fields")
	}
	if !q.OK || q.QuoteTime == "" {
		t.Error("ok and quoteTime are always present")
	}
}

func TestQuoteDepthSpansWorseLevels(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	mustPlace(t, e, "B", 2, 20, 100, 1, 1)
	mustPlace(t, e, "C", 3, 5, 90, 1, 1)

	q := e.QuoteView()
	if q.BidSize != 30 || q.BidDepth != 35 {
		t.Errorf("bidSize=%d bidDepth=%d, want 30/35", q.BidSize, q.BidDepth)
	}
}

// ---------------- Binary book ----------------

func TestWriteBookBinary(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 256, 1, 1)
	mustPlace(t, e, "B", 2, 5, 300, 2, 1)

	var buf bytes.Buffer
	if err := e.WriteBookBinary(&buf); err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0, 0, 0, 10, 0, 0, 1, 0, // bid: qty 10, price 256
		0, 0, 0, 0, 0, 0, 0, 0, // bids end
		0, 0, 0, 5, 0, 0, 1, 44, // ask: qty 5, price 300
		0, 0, 0, 0, 0, 0, 0, 0, // asks end
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("binary book = % x, want % x", buf.Bytes(), want)
	}
}

func TestWriteBookBinaryEmpty(t *testing.T) {
	e, _ := newTestEngine()

	var buf bytes.Buffer
	e.WriteBookBinary(&buf)
	if buf.Len() != 16 {
		t.Errorf("empty book = %d bytes, want two zero flags", buf.Len())
	}
}

// ---------------- Introspection ----------------

func TestScoresBeforeTrading(t *testing.T) {
	e, _ := newTestEngine()

	html := e.ScoresHTML()
	if !strings.Contains(html, "No trading activity yet.") {
		t.Errorf("scores = %q", html)
	}
}

func TestScoresAfterTrading(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "ALICE", 1, 10, 5000, 1, 1)
	mustPlace(t, e, "BOB", 2, 10, 5000, 2, 1)

	html := e.ScoresHTML()
	if !strings.Contains(html, "Current price: $50.00") {
		t.Errorf("scores missing price: %q", html)
	}
	if !strings.Contains(html, "ALICE") || !strings.Contains(html, "BOB") {
		t.Error("scores missing accounts")
	}
}

func TestAccountOrdersAppendOnly(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	mustPlace(t, e, "A", 1, 10, 100, 1, 4)

	a := e.AccountByID(1)
	if len(a.Orders) != 2 {
		t.Errorf("account owns %d orders, want 2", len(a.Orders))
	}
	if a.Orders[0].ID != 0 || a.Orders[1].ID != 1 {
		t.Error("owned orders out of order")
	}
}

func TestBookWellFormedAfterRandomishFlow(t *testing.T) {
	e, _ := newTestEngine()

	mustPlace(t, e, "A", 1, 10, 100, 1, 1)
	mustPlace(t, e, "B", 2, 10, 105, 1, 1)
	mustPlace(t, e, "C", 3, 10, 95, 1, 1)
	mustPlace(t, e, "D", 4, 15, 104, 2, 1)
	mustPlace(t, e, "E", 5, 3, 101, 2, 1)
	o := mustPlace(t, e, "F", 6, 2, 96, 1, 1)
	e.Cancel(o.ID)

	assertSideWellFormed(t, &e.book.bids)
	assertSideWellFormed(t, &e.book.asks)
}

func assertSideWellFormed(t *testing.T, s *bookSide) {
	t.Helper()
	prev := int32(-1)
	for li := s.first; li != nilRef; li = s.arena.level(li).next {
		lvl := s.arena.level(li)
		if prev != -1 && !s.better(prev, lvl.price) {
			t.Errorf("level list not strictly sorted: %d then %d", prev, lvl.price)
		}
		prev = lvl.price
		if lvl.head == nilRef {
			t.Error("empty level on the book")
		}
		for ni := lvl.head; ni != nilRef; ni = s.arena.node(ni).next {
			if !s.arena.node(ni).order.Open {
				t.Error("closed order on the book")
			}
		}
	}
}
