package book

// Quote is the derived snapshot of the book. Bid/Ask/Last/LastSize use
// -1 as the absent value; LastTrade stays empty until the first trade.
// Size and depth are int64 because they can exceed any single order.
type Quote struct {
	BidSize   int64
	AskSize   int64
	BidDepth  int64
	AskDepth  int64
	Bid       int32
	Ask       int32
	Last      int32
	LastSize  int32
	LastTrade string
	QuoteTime string
}

// remakeQuote recomputes the parts of the quote determined by the book
// itself. The last-trade fields are owned by cross and never touched
// here, because this runs on every book change whether or not a fill
// happened.
func (e *Engine) remakeQuote() {
	e.quote.BidSize = e.book.bids.sizeAtBest()
	e.quote.BidDepth = e.book.bids.depth()
	e.quote.AskSize = e.book.asks.sizeAtBest()
	e.quote.AskDepth = e.book.asks.depth()
	e.quote.Bid = e.book.bids.bestPrice()
	e.quote.Ask = e.book.asks.bestPrice()
	e.quote.QuoteTime = e.clock.Now()
}

func (e *Engine) setQuoteLastInfo(price, qty int32) {
	e.quote.Last = price
	e.quote.LastSize = qty
	e.quote.LastTrade = e.clock.Now()
}
