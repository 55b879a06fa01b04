package crypto

import (
	"encoding/hex"
	"errors"
	"testing"
)

const regtestWIFVersion = 239

func TestDecodeWIF(t *testing.T) {
	tests := []struct {
		wif        string
		priv       string
		compressed bool
	}{
		{"cNoUVyyacpVBpotBGxrnM5XXekdqV8qgnowVQfgCvDWVU9jn4gUz", testPrivHex, true},
		{"91rxAjpFsFqXYgAnNk1rhM4HuxeoL4b97JS2uVFKZSwiLrD7THY", testPrivHex, false},
		{"cPaTadxsWhzHNgi2hAiFXXnw7foEGXBME75s27CEGFeS8S3pYf8j", "3b8ccde96d9c78c6cf248ffcb9ed89ba8327b8c994600ca391b38f5deffa15ca", true},
	}
	for _, tt := range tests {
		pk, compressed, err := DecodeWIF(tt.wif, regtestWIFVersion)
		if err != nil {
			t.Fatalf("DecodeWIF(%s): %v", tt.wif, err)
		}
		if got := hex.EncodeToString(pk.Serialize()); got != tt.priv {
			t.Errorf("DecodeWIF(%s) key = %s, want %s", tt.wif, got, tt.priv)
		}
		if compressed != tt.compressed {
			t.Errorf("DecodeWIF(%s) compressed = %v, want %v", tt.wif, compressed, tt.compressed)
		}
	}
}

func TestDecodeWIF_WrongNetwork(t *testing.T) {
	// Mainnet secret prefix is 128.
	_, _, err := DecodeWIF("KxSV34yjBknvfNQutZ3eym2U2XLRpgjzimo2JFDhR6rVDQkSKeEt", regtestWIFVersion)
	if !errors.Is(err, ErrWIFNetwork) {
		t.Fatalf("DecodeWIF mainnet on regtest error = %v, want ErrWIFNetwork", err)
	}
}

func TestDecodeWIF_BadChecksum(t *testing.T) {
	if _, _, err := DecodeWIF("cNoUVyyacpVBpotBGxrnM5XXekdqV8qgnowVQfgCvDWVU9jn4gUy", regtestWIFVersion); err == nil {
		t.Error("corrupted WIF should fail")
	}
}

func TestEncodeWIF_Roundtrip(t *testing.T) {
	pk, _ := PrivateKeyFromHex(testPrivHex)
	got := EncodeWIF(pk, regtestWIFVersion, true)
	if got != "cNoUVyyacpVBpotBGxrnM5XXekdqV8qgnowVQfgCvDWVU9jn4gUz" {
		t.Errorf("EncodeWIF = %s", got)
	}
}
