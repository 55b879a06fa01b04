package address

import (
	"fmt"

	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// Kind selects which address form to derive for a key.
type Kind string

// Address kinds accepted by getnewaddress.
const (
	KindLegacy     Kind = "legacy"
	KindP2SHSegwit Kind = "p2sh-segwit"
	KindBech32     Kind = "bech32"
	KindEth        Kind = "eth"
)

// ParseKind parses a wallet address type name. Empty means bech32.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "":
		return KindBech32, nil
	case KindLegacy, KindP2SHSegwit, KindBech32, KindEth:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown address type %q", s)
	}
}

// Derive returns the address of the given kind for a public key.
func (c *Codec) Derive(pub *crypto.PublicKey, kind Kind) (types.Address, error) {
	var addr types.Address
	switch kind {
	case KindLegacy:
		addr = types.Address{Space: types.SpacePrimary, Type: types.TypePubKeyHash, Payload: crypto.Hash160(pub.Compressed())}
	case KindP2SHSegwit:
		addr = types.Address{Space: types.SpacePrimary, Type: types.TypeScriptHash, Payload: crypto.Hash160(witnessRedeemScript(pub))}
	case KindBech32:
		addr = types.Address{Space: types.SpacePrimary, Type: types.TypeWitnessPubKeyHash, Payload: crypto.Hash160(pub.Compressed())}
	case KindEth:
		return secondaryAddress(AccountHash(pub)), nil
	default:
		return types.Address{}, fmt.Errorf("unknown address kind %q", kind)
	}
	text, err := c.Encode(addr)
	if err != nil {
		return types.Address{}, err
	}
	addr.Text = text
	return addr, nil
}

// Canonical returns the canonical address of a key in the given space:
// bech32 P2WPKH in the primary space, the EIP-55 account in the secondary.
func (c *Codec) Canonical(pub *crypto.PublicKey, space types.Space) (types.Address, error) {
	switch space {
	case types.SpacePrimary:
		return c.Derive(pub, KindBech32)
	case types.SpaceSecondary:
		return c.Derive(pub, KindEth)
	default:
		return types.Address{}, fmt.Errorf("unknown address space %d", space)
	}
}

// KeyAddresses returns every address form the key can be reached by.
// When the key was imported uncompressed, the uncompressed legacy form is
// included as well.
func (c *Codec) KeyAddresses(pub *crypto.PublicKey, uncompressed bool) ([]types.Address, error) {
	kinds := []Kind{KindBech32, KindLegacy, KindP2SHSegwit, KindEth}
	out := make([]types.Address, 0, len(kinds)+1)
	for _, k := range kinds {
		a, err := c.Derive(pub, k)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if uncompressed {
		a := types.Address{Space: types.SpacePrimary, Type: types.TypePubKeyHash, Payload: crypto.Hash160(pub.Uncompressed())}
		text, err := c.Encode(a)
		if err != nil {
			return nil, err
		}
		a.Text = text
		out = append(out, a)
	}
	return out, nil
}

// AccountHash is the secondary-space key hash: the last 20 bytes of
// Keccak256 over the uncompressed key without its 0x04 prefix.
func AccountHash(pub *crypto.PublicKey) []byte {
	unc := pub.Uncompressed()
	return crypto.Keccak256(unc[1:])[12:]
}

// witnessRedeemScript is OP_0 <20-byte key hash>.
func witnessRedeemScript(pub *crypto.PublicKey) []byte {
	script := make([]byte, 0, 22)
	script = append(script, 0x00, 0x14)
	return append(script, crypto.Hash160(pub.Compressed())...)
}
