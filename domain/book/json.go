package book

// JSON views of engine state. The field set and the conditional fields
// (bid/ask omitted when the side is empty, last-trade trio omitted
// until a trade has happened) are part of the wire contract.

type FillView struct {
	Price int32  `json:"price"`
	Qty   int32  `json:"qty"`
	TS    string `json:"ts"`
}

type OrderView struct {
	OK          bool       `json:"ok"`
	Venue       string     `json:"venue"`
	Symbol      string     `json:"symbol"`
	Direction   string     `json:"direction"`
	OriginalQty int32      `json:"originalQty"`
	Qty         int32      `json:"qty"`
	Price       int32      `json:"price"`
	OrderType   string     `json:"orderType"`
	ID          int32      `json:"id"`
	Account     string     `json:"account"`
	TS          string     `json:"ts"`
	TotalFilled int32      `json:"totalFilled"`
	Open        bool       `json:"open"`
	Fills       []FillView `json:"fills"`
}

type QuoteView struct {
	OK        bool   `json:"ok"`
	Symbol    string `json:"symbol"`
	Venue     string `json:"venue"`
	BidSize   int64  `json:"bidSize"`
	AskSize   int64  `json:"askSize"`
	BidDepth  int64  `json:"bidDepth"`
	AskDepth  int64  `json:"askDepth"`
	QuoteTime string `json:"quoteTime"`
	Bid       *int32 `json:"bid,omitempty"`
	Ask       *int32 `json:"ask,omitempty"`
	LastTrade string `json:"lastTrade,omitempty"`
	LastSize  *int32 `json:"lastSize,omitempty"`
	Last      *int32 `json:"last,omitempty"`
}

type TickerView struct {
	OK    bool      `json:"ok"`
	Quote QuoteView `json:"quote"`
}

// ExecutionView is published once per participant per cross. Order is
// the participant's own order as it stood when the fill was recorded.
type ExecutionView struct {
	OK               bool      `json:"ok"`
	Account          string    `json:"account"`
	Venue            string    `json:"venue"`
	Symbol           string    `json:"symbol"`
	Order            OrderView `json:"order"`
	StandingID       int32     `json:"standingId"`
	IncomingID       int32     `json:"incomingId"`
	Price            int32     `json:"price"`
	Filled           int32     `json:"filled"`
	FilledAt         string    `json:"filledAt"`
	StandingComplete bool      `json:"standingComplete"`
	IncomingComplete bool      `json:"incomingComplete"`
}

// OrderView renders an order with its fills resolved from the log.
func (e *Engine) OrderView(o *Order) OrderView {
	fills := make([]FillView, 0, len(o.Fills))
	for _, id := range o.Fills {
		f := e.fills.Get(id)
		fills = append(fills, FillView{Price: f.Price, Qty: f.Qty, TS: f.TS})
	}
	return OrderView{
		OK:          true,
		Venue:       e.venue,
		Symbol:      e.symbol,
		Direction:   o.Direction.String(),
		OriginalQty: o.OriginalQty,
		Qty:         o.Qty,
		Price:       o.Price,
		OrderType:   o.Type.String(),
		ID:          o.ID,
		Account:     o.Account.Name,
		TS:          o.TS,
		TotalFilled: o.TotalFilled,
		Open:        o.Open,
		Fills:       fills,
	}
}

func (e *Engine) QuoteView() QuoteView {
	v := QuoteView{
		OK:        true,
		Symbol:    e.symbol,
		Venue:     e.venue,
		BidSize:   e.quote.BidSize,
		AskSize:   e.quote.AskSize,
		BidDepth:  e.quote.BidDepth,
		AskDepth:  e.quote.AskDepth,
		QuoteTime: e.quote.QuoteTime,
	}
	if e.quote.Bid >= 0 {
		bid := e.quote.Bid
		v.Bid = &bid
	}
	if e.quote.Ask >= 0 {
		ask := e.quote.Ask
		v.Ask = &ask
	}
	if e.quote.LastTrade != "" {
		last := e.quote.Last
		lastSize := e.quote.LastSize
		v.LastTrade = e.quote.LastTrade
		v.Last = &last
		v.LastSize = &lastSize
	}
	return v
}

func (e *Engine) tickerView() TickerView {
	return TickerView{OK: true, Quote: e.QuoteView()}
}

func (e *Engine) executionView(owner, standing, incoming *Order, qty, price int32, ts string) ExecutionView {
	return ExecutionView{
		OK:               true,
		Account:          owner.Account.Name,
		Venue:            e.venue,
		Symbol:           e.symbol,
		Order:            e.OrderView(owner),
		StandingID:       standing.ID,
		IncomingID:       incoming.ID,
		Price:            price,
		Filled:           qty,
		FilledAt:         ts,
		StandingComplete: !standing.Open,
		IncomingComplete: !incoming.Open,
	}
}
