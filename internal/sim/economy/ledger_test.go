package economy

import "testing"

func TestLedger_DeductRefund(t *testing.T) {
	l := NewLedger(map[string]int{"wood": 10, "stone": 3, "": 5, "runes": 0})
	cost := Cost{"wood": 4, "stone": 3, "": 9}
	if !l.CanAfford(cost) {
		t.Fatalf("expected affordable")
	}
	l.Deduct(cost)
	if l.Amount("wood") != 6 {
		t.Fatalf("wood=%d want 6", l.Amount("wood"))
	}
	if _, ok := l.Balances()["stone"]; ok {
		t.Fatalf("expected stone removed, got %#v", l.Balances())
	}
	if l.CanAfford(Cost{"stone": 1}) {
		t.Fatalf("expected stone unaffordable")
	}
	l.Refund(cost)
	if l.Amount("wood") != 10 || l.Amount("stone") != 3 {
		t.Fatalf("after refund: %#v", l.Balances())
	}
}

func TestCost_Scale(t *testing.T) {
	c := Cost{"wood": 2, "food": 1}
	s := c.Scale(5)
	if s["wood"] != 10 || s["food"] != 5 {
		t.Fatalf("scaled=%#v", s)
	}
	if c["wood"] != 2 {
		t.Fatalf("Scale mutated the receiver")
	}
	if len(c.Scale(0)) != 0 {
		t.Fatalf("Scale(0) should be empty")
	}
}

func TestCost_Pairs(t *testing.T) {
	got := Cost{"wood": 2, "food": 1, "stone": 0}.Pairs()
	if len(got) != 2 || got[0][0] != "food" || got[1][0] != "wood" {
		t.Fatalf("pairs=%v", got)
	}
}
