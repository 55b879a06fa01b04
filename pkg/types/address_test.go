package types

import (
	"encoding/json"
	"testing"
)

func TestAddressType_IsSingleKey(t *testing.T) {
	single := []AddressType{TypePubKeyHash, TypeWitnessPubKeyHash, TypeKeyHash}
	for _, at := range single {
		if !at.IsSingleKey() {
			t.Errorf("%s should be single-key", at)
		}
	}
	multi := []AddressType{TypeScriptHash, TypeWitnessScriptHash, TypeUnknown}
	for _, at := range multi {
		if at.IsSingleKey() {
			t.Errorf("%s should not be single-key", at)
		}
	}
}

func TestAddress_IsZero(t *testing.T) {
	if !(Address{Payload: make([]byte, 20)}).IsZero() {
		t.Error("all-zero payload should be zero")
	}
	if (Address{Payload: []byte{0, 1}}).IsZero() {
		t.Error("non-zero payload should not be zero")
	}
}

func TestAddress_Equal(t *testing.T) {
	a := Address{Space: SpacePrimary, Type: TypePubKeyHash, Payload: []byte{1, 2}, Text: "x"}
	b := Address{Space: SpacePrimary, Type: TypePubKeyHash, Payload: []byte{1, 2}, Text: "y"}
	if !a.Equal(b) {
		t.Error("same space/type/payload should be equal regardless of text")
	}
	b.Type = TypeWitnessPubKeyHash
	if a.Equal(b) {
		t.Error("different types should not be equal")
	}
}

func TestAddress_MarshalJSON(t *testing.T) {
	a := Address{Text: "bcrt1qexample"}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"bcrt1qexample"` {
		t.Errorf("Marshal = %s", data)
	}
}
