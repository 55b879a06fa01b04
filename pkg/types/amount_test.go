package types

import "testing"

func TestAmount_String(t *testing.T) {
	tests := []struct {
		in   Amount
		want string
	}{
		{0, "0.00000000"},
		{300 * Coin, "300.00000000"},
		{1, "0.00000001"},
		{-150_000_000, "-1.50000000"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Amount(%d).String() = %s, want %s", int64(tt.in), got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"300", 300 * Coin, false},
		{"1.5", 150_000_000, false},
		{".1", 10_000_000, false},
		{"0.00000001", 1, false},
		{"-2", -2 * Coin, false},
		{"0.000000001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"99999999999", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAmountFromFloat(t *testing.T) {
	got, err := AmountFromFloat(0.1)
	if err != nil {
		t.Fatalf("AmountFromFloat: %v", err)
	}
	if got != 10_000_000 {
		t.Errorf("AmountFromFloat(0.1) = %d, want 10000000", got)
	}
}

func TestParseTokenAmount(t *testing.T) {
	ta, err := ParseTokenAmount("300@GOLD", "DFI")
	if err != nil {
		t.Fatalf("ParseTokenAmount: %v", err)
	}
	if ta.Token != "GOLD" || ta.Amount != 300*Coin {
		t.Errorf("ParseTokenAmount = %+v", ta)
	}
	if ta.String() != "300.00000000@GOLD" {
		t.Errorf("String() = %s", ta.String())
	}

	ta, err = ParseTokenAmount("2.5", "DFI")
	if err != nil {
		t.Fatalf("ParseTokenAmount bare: %v", err)
	}
	if ta.Token != "DFI" {
		t.Errorf("bare amount token = %s, want DFI", ta.Token)
	}

	if _, err := ParseTokenAmount("0@GOLD", "DFI"); err == nil {
		t.Error("zero amount should fail")
	}
	if _, err := ParseTokenAmount("-1@GOLD", "DFI"); err == nil {
		t.Error("negative amount should fail")
	}
}

func TestTokenAmount_Text(t *testing.T) {
	var ta TokenAmount
	if err := ta.UnmarshalText([]byte("-4.5@GOLD")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if ta.Token != "GOLD" || ta.Amount != -450_000_000 {
		t.Fatalf("got %+v", ta)
	}
	text, err := ta.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "-4.50000000@GOLD" {
		t.Errorf("MarshalText = %q", text)
	}
	if err := ta.UnmarshalText([]byte("4.5")); err == nil {
		t.Error("missing token should fail")
	}
}
