package wallet

import (
	"encoding/hex"
	"strings"
	"testing"
)

const (
	vectorMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	vectorSeed     = "c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04"
)

func TestSeedFromMnemonic_Vector(t *testing.T) {
	seed, err := SeedFromMnemonic(vectorMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if got := hex.EncodeToString(seed); got != vectorSeed {
		t.Errorf("seed = %s, want %s", got, vectorSeed)
	}
}

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if words := strings.Fields(m); len(words) != 24 {
		t.Errorf("word count = %d, want 24", len(words))
	}
	if !ValidateMnemonic(m) {
		t.Error("generated mnemonic does not validate")
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	tests := []string{
		"",
		"abandon abandon abandon",
		strings.Replace(vectorMnemonic, "about", "abandon", 1), // bad checksum
	}
	for _, m := range tests {
		if _, err := SeedFromMnemonic(m, ""); err == nil {
			t.Errorf("SeedFromMnemonic(%q) expected error", m)
		}
	}
}
