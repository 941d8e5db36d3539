package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := map[string]int64{
		"12.34":  1234,
		"12,34":  1234,
		"12.345": 1235,
		"12.344": 1234,
		"50":     5000,
		"0":      0,
	}
	for in, want := range cases {
		m, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", in, err)
		}
		if m.Cents != want {
			t.Fatalf("ParseMoney(%q) = %d, want %d", in, m.Cents, want)
		}
	}

	for _, bad := range []string{"", "-1", "abc", "1.2.3"} {
		if _, err := ParseMoney(bad); err == nil {
			t.Fatalf("ParseMoney(%q) expected error", bad)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 50, "b": "19.99"}`), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.A.Cents != 5000 || payload.B.Cents != 1999 {
		t.Fatalf("got %d and %d", payload.A.Cents, payload.B.Cents)
	}

	out, err := json.Marshal(Money{Cents: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"50.00"` {
		t.Fatalf("marshal = %s", out)
	}

	var neg Money
	if err := json.Unmarshal([]byte(`-3`), &neg); err == nil {
		t.Fatal("expected error for negative amount")
	}
}
