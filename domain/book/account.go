package book

// Share and cash balances saturate at this bound instead of wrapping.
// Anything beyond it is simply lost.
const balanceLimit = 2147483647

// Account tracks one trader's position on this book. The first name
// registered for an account id wins; later lookups with a different
// name return the existing record unchanged.
type Account struct {
	Name   string
	Shares int32
	Cents  int32
	PosMin int32
	PosMax int32
	Orders []*Order
}

const accountChunk = 64

// Ledger maps dense account ids to accounts. Ids are assigned by the
// frontend and act as storage slots; holes are possible, so empty slots
// stay nil to keep unknown ids observable.
type Ledger struct {
	accounts []*Account
	cap      int32
	created  int
}

func NewLedger(cap int32) *Ledger {
	return &Ledger{cap: cap}
}

func (l *Ledger) Cap() int32 { return l.cap }

// Created reports how many accounts have ever been made.
func (l *Ledger) Created() int { return l.created }

// SlotCount reports the current length of the dense slot array.
func (l *Ledger) SlotCount() int { return len(l.accounts) }

// LookupOrCreate returns the account in the given slot, creating it
// with the given name if the slot is empty. The caller has already
// validated id against Cap.
func (l *Ledger) LookupOrCreate(name string, id int32) *Account {
	for int(id) >= len(l.accounts) {
		l.accounts = append(l.accounts, make([]*Account, accountChunk)...)
	}
	if l.accounts[id] == nil {
		l.accounts[id] = &Account{Name: name}
		l.created++
	}
	return l.accounts[id]
}

// Get returns the account in the given slot, or nil when the slot is
// out of range or was never created.
func (l *Ledger) Get(id int32) *Account {
	if id < 0 || int(id) >= len(l.accounts) {
		return nil
	}
	return l.accounts[id]
}

// Each visits every known account in slot order.
func (l *Ledger) Each(fn func(*Account)) {
	for _, a := range l.accounts {
		if a != nil {
			fn(a)
		}
	}
}

// ApplyTrade adjusts one account for one fill: shares up and cash down
// on a buy, the reverse on a sell. Both balances clamp at the int32
// bound rather than wrapping, and the position high-water marks follow
// the share balance.
func (l *Ledger) ApplyTrade(a *Account, qty, price int32, dir Side) {
	shares := int64(a.Shares)
	cents := int64(a.Cents)

	if dir == Buy {
		shares += int64(qty)
		cents -= int64(price) * int64(qty)
	} else {
		shares -= int64(qty)
		cents += int64(price) * int64(qty)
	}

	a.Shares = clamp32(shares)
	a.Cents = clamp32(cents)

	if a.Shares < a.PosMin {
		a.PosMin = a.Shares
	}
	if a.Shares > a.PosMax {
		a.PosMax = a.Shares
	}
}

func clamp32(v int64) int32 {
	if v > balanceLimit {
		return balanceLimit
	}
	if v < -balanceLimit {
		return -balanceLimit
	}
	return int32(v)
}
