package book

import (
	"fmt"
	"strings"
)

// ScoresHTML renders the human-readable scoreboard. NAV is computed at
// the last traded price; shares, cents and last are all int32, so
// shares*last+cents always fits in an int64.
func (e *Engine) ScoresHTML() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<html><head><title>%s %s</title></head><body><pre>%s %s\n",
		e.venue, e.symbol, e.venue, e.symbol)

	if e.quote.Last == -1 {
		sb.WriteString("No trading activity yet.</pre>")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Current price: $%d.%02d\n\n", e.quote.Last/100, e.quote.Last%100)
	sb.WriteString("             Account           USD $          Shares         Pos.min         Pos.max           NAV $\n")

	e.ledger.Each(func(a *Account) {
		nav := int64(a.Shares)*int64(e.quote.Last) + int64(a.Cents)
		fmt.Fprintf(&sb, "%20s %15d %15d %15d %15d %15d\n",
			a.Name, a.Cents/100, a.Shares, a.PosMin, a.PosMax, nav/100)
	})

	fmt.Fprintf(&sb, "\n  Start time: %s\nCurrent time: %s", e.startTime, e.clock.Now())
	sb.WriteString("</pre></body></html>")

	return sb.String()
}

// MemoryInfo reports allocation counters for the introspection command:
// store and log sizes plus the per-side arena slab usage.
func (e *Engine) MemoryInfo() string {
	bids := e.book.bids.arena.stats()
	asks := e.book.asks.arena.stats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "orders_stored: %d,\n", e.store.Highest()+1)
	fmt.Fprintf(&sb, "order_store_growths: %d,\n", e.store.Growths())
	fmt.Fprintf(&sb, "fills_logged: %d,\n", e.fills.Len())
	fmt.Fprintf(&sb, "accounts_created: %d,\n", e.ledger.Created())
	fmt.Fprintf(&sb, "bid_level_allocs: %d,\n", bids.LevelAllocs)
	fmt.Fprintf(&sb, "bid_level_slots: %d (%d free),\n", bids.LevelSlots, bids.LevelsFree)
	fmt.Fprintf(&sb, "bid_node_allocs: %d,\n", bids.NodeAllocs)
	fmt.Fprintf(&sb, "bid_node_slots: %d (%d free),\n", bids.NodeSlots, bids.NodesFree)
	fmt.Fprintf(&sb, "ask_level_allocs: %d,\n", asks.LevelAllocs)
	fmt.Fprintf(&sb, "ask_level_slots: %d (%d free),\n", asks.LevelSlots, asks.LevelsFree)
	fmt.Fprintf(&sb, "ask_node_allocs: %d,\n", asks.NodeAllocs)
	fmt.Fprintf(&sb, "ask_node_slots: %d (%d free)", asks.NodeSlots, asks.NodesFree)
	return sb.String()
}
