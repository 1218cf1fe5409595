package economy

import "sort"

// Cost maps a resource id to an amount. Non-positive entries are ignored.
type Cost map[string]int

// Scale multiplies every entry by n.
func (c Cost) Scale(n int) Cost {
	if len(c) == 0 || n <= 0 {
		return Cost{}
	}
	out := make(Cost, len(c))
	for k, v := range c {
		out[k] = v * n
	}
	return out
}

func (c Cost) Clone() Cost {
	out := make(Cost, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Pairs encodes c as sorted [resource, amount] pairs.
func (c Cost) Pairs() [][]interface{} {
	keys := make([]string, 0, len(c))
	for k, v := range c {
		if k != "" && v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, []interface{}{k, c[k]})
	}
	return out
}

// Ledger is the in-memory resource store used by a single game session.
// It is not safe for concurrent use; the world loop owns it.
type Ledger struct {
	balances map[string]int
}

func NewLedger(start map[string]int) *Ledger {
	l := &Ledger{balances: map[string]int{}}
	for k, v := range start {
		if k == "" || v <= 0 {
			continue
		}
		l.balances[k] = v
	}
	return l
}

func (l *Ledger) Amount(resource string) int { return l.balances[resource] }

func (l *Ledger) CanAfford(cost Cost) bool {
	for res, n := range cost {
		if res == "" || n <= 0 {
			continue
		}
		if l.balances[res] < n {
			return false
		}
	}
	return true
}

func (l *Ledger) Deduct(cost Cost) {
	for res, n := range cost {
		if res == "" || n <= 0 {
			continue
		}
		l.balances[res] -= n
		if l.balances[res] <= 0 {
			delete(l.balances, res)
		}
	}
}

func (l *Ledger) Refund(cost Cost) {
	for res, n := range cost {
		if res == "" || n <= 0 {
			continue
		}
		l.balances[res] += n
	}
}

// Balances returns a copy of the current amounts.
func (l *Ledger) Balances() map[string]int {
	out := make(map[string]int, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out
}
