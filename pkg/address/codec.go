package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/types"
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidFormat is returned when text is not a valid address in any space.
var ErrInvalidFormat = errors.New("invalid address format")

const (
	witnessV0        = 0
	keyHashLen       = crypto.Hash160Size
	witnessScriptLen = 32
	secondaryTextLen = 2 + 2*keyHashLen
)

// Codec converts between address text and decoded addresses for one network.
type Codec struct {
	params *Params
}

// NewCodec creates a codec for the given network parameters.
func NewCodec(params *Params) *Codec {
	return &Codec{params: params}
}

// Params returns the codec's network parameters.
func (c *Codec) Params() *Params {
	return c.params
}

// Decode parses address text in either space and classifies its type.
// The returned address carries the canonical text for its encoding.
func (c *Codec) Decode(text string) (types.Address, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Address{}, fmt.Errorf("%w: empty", ErrInvalidFormat)
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		return c.decodeSecondary(text)
	}
	if strings.HasPrefix(strings.ToLower(text), c.params.Bech32HRP+"1") {
		return c.decodeWitness(text)
	}
	return c.decodeBase58(text)
}

func (c *Codec) decodeSecondary(text string) (types.Address, error) {
	if len(text) != secondaryTextLen || !common.IsHexAddress(text) {
		return types.Address{}, fmt.Errorf("%w: %s", ErrInvalidFormat, text)
	}
	body := text[2:]
	addr := common.HexToAddress(text)
	// Mixed case must carry a valid EIP-55 checksum.
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return types.Address{}, fmt.Errorf("%w: bad checksum %s", ErrInvalidFormat, text)
	}
	return secondaryAddress(addr.Bytes()), nil
}

func (c *Codec) decodeWitness(text string) (types.Address, error) {
	hrp, data, err := bech32.Decode(text)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if hrp != c.params.Bech32HRP || len(data) < 1 {
		return types.Address{}, fmt.Errorf("%w: %s", ErrInvalidFormat, text)
	}
	if data[0] != witnessV0 {
		return types.Address{}, fmt.Errorf("%w: unsupported witness version %d", ErrInvalidFormat, data[0])
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var at types.AddressType
	switch len(program) {
	case keyHashLen:
		at = types.TypeWitnessPubKeyHash
	case witnessScriptLen:
		at = types.TypeWitnessScriptHash
	default:
		return types.Address{}, fmt.Errorf("%w: witness program length %d", ErrInvalidFormat, len(program))
	}
	return types.Address{
		Space:   types.SpacePrimary,
		Type:    at,
		Payload: program,
		Text:    strings.ToLower(text),
	}, nil
}

func (c *Codec) decodeBase58(text string) (types.Address, error) {
	payload, version, err := base58.CheckDecode(text)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(payload) != keyHashLen {
		return types.Address{}, fmt.Errorf("%w: payload length %d", ErrInvalidFormat, len(payload))
	}

	var at types.AddressType
	switch version {
	case c.params.PubKeyHashAddrID:
		at = types.TypePubKeyHash
	case c.params.ScriptHashAddrID:
		at = types.TypeScriptHash
	default:
		return types.Address{}, fmt.Errorf("%w: unknown version byte %d", ErrInvalidFormat, version)
	}
	return types.Address{
		Space:   types.SpacePrimary,
		Type:    at,
		Payload: payload,
		Text:    text,
	}, nil
}

// Encode renders a decoded address to text under the codec's network.
func (c *Codec) Encode(addr types.Address) (string, error) {
	switch addr.Type {
	case types.TypePubKeyHash:
		return c.encodeBase58(addr.Payload, c.params.PubKeyHashAddrID)
	case types.TypeScriptHash:
		return c.encodeBase58(addr.Payload, c.params.ScriptHashAddrID)
	case types.TypeWitnessPubKeyHash:
		if len(addr.Payload) != keyHashLen {
			return "", fmt.Errorf("witness key hash must be %d bytes", keyHashLen)
		}
		return c.encodeWitness(addr.Payload)
	case types.TypeWitnessScriptHash:
		if len(addr.Payload) != witnessScriptLen {
			return "", fmt.Errorf("witness script hash must be %d bytes", witnessScriptLen)
		}
		return c.encodeWitness(addr.Payload)
	case types.TypeKeyHash:
		if len(addr.Payload) != keyHashLen {
			return "", fmt.Errorf("account key hash must be %d bytes", keyHashLen)
		}
		return common.BytesToAddress(addr.Payload).Hex(), nil
	default:
		return "", fmt.Errorf("cannot encode address type %s", addr.Type)
	}
}

func (c *Codec) encodeBase58(payload []byte, version byte) (string, error) {
	if len(payload) != keyHashLen {
		return "", fmt.Errorf("key hash must be %d bytes", keyHashLen)
	}
	return base58.CheckEncode(payload, version), nil
}

func (c *Codec) encodeWitness(program []byte) (string, error) {
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32 convert: %w", err)
	}
	return bech32.Encode(c.params.Bech32HRP, append([]byte{witnessV0}, conv...))
}

// IsEligibleForConversion reports whether addr names exactly one key and may
// be mapped into the other space. Script-hash forms never qualify.
func IsEligibleForConversion(addr types.Address) bool {
	return addr.Type.IsSingleKey()
}

func secondaryAddress(payload []byte) types.Address {
	return types.Address{
		Space:   types.SpaceSecondary,
		Type:    types.TypeKeyHash,
		Payload: payload,
		Text:    common.BytesToAddress(payload).Hex(),
	}
}
