package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.50", true},
		{"1200", "1200.00", true},
		{"-3", "-3.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MoneyFromFloat(0.1)
	b := MoneyFromFloat(0.2)
	if got := a.Add(b); !got.Equal(MoneyFromFloat(0.3)) {
		t.Fatalf("expected 0.30, got %s", got)
	}
	if got := a.Sub(b); !got.IsNegative() {
		t.Fatalf("expected negative, got %s", got)
	}
	if got := a.Neg().Neg(); !got.Equal(a) {
		t.Fatalf("double negation changed value: %s", got)
	}
	if !Zero.IsZero() || Zero.IsPositive() {
		t.Fatalf("zero value misbehaves")
	}
}

func TestMoneyPercent(t *testing.T) {
	cases := []struct {
		spent, total int64
		want         float64
	}{
		{5000, 20000, 25},
		{0, 20000, 0},
		{30000, 20000, 150},
		{100, 0, 0},
	}
	for _, tc := range cases {
		got := MoneyFromInt(tc.spent).Percent(MoneyFromInt(tc.total))
		if got != tc.want {
			t.Fatalf("%d/%d expected %v, got %v", tc.spent, tc.total, tc.want, got)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{MoneyFromInt(48800)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":48800.00}` {
		t.Fatalf("unexpected json %s", b)
	}

	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.345,"b":"7.5"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.String() != "12.35" || v.B.String() != "7.50" {
		t.Fatalf("unexpected values %s %s", v.A, v.B)
	}
}
