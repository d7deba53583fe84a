package controller

import "testing"

func TestNormalizeCoin(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTCUSDT", "BTC"},
		{"ethusd", "ETH"},
		{"SOLPERP", "SOL"},
		{"BTC", "BTC"},
		{" doge ", "DOGE"},
		{"USDT", "USDT"},
	}

	for _, tt := range tests {
		if got := NormalizeCoin(tt.input); got != tt.expected {
			t.Fatalf("expected %s -> %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestNormalizeSide(t *testing.T) {
	if isLong, ok := NormalizeSide("BUY"); !ok || !isLong {
		t.Fatalf("expected BUY to be long")
	}
	if isLong, ok := NormalizeSide("short"); !ok || isLong {
		t.Fatalf("expected short to be short")
	}
	if _, ok := NormalizeSide("hold"); ok {
		t.Fatalf("expected hold to be rejected")
	}
}
