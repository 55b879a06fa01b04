package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/defiledger/internal/addressmap"
	"github.com/Klingon-tech/defiledger/internal/keystore"
	"github.com/Klingon-tech/defiledger/pkg/address"
)

// ── Address mapping ─────────────────────────────────────────────────────

func (s *Server) handleAddressMap(p params) (interface{}, *Error) {
	if err := p.requireLen(2, 2); err != nil {
		return nil, err
	}
	text, rpcErr := p.str(0, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	code, rpcErr := p.int64At(1, "type")
	if rpcErr != nil {
		// Any number that is not a small integer is an unknown direction.
		var n json.Number
		if json.Unmarshal(p[1], &n) == nil {
			return nil, toRPCError(addressmap.ErrInvalidParameter)
		}
		return nil, rpcErr
	}
	dir, err := addressmap.ParseDirection(code)
	if err != nil {
		return nil, toRPCError(err)
	}
	out, err := s.mapper.Map(text, dir)
	if err != nil {
		return nil, toRPCError(err)
	}
	return out, nil
}

func (s *Server) handleValidateAddress(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 1); err != nil {
		return nil, err
	}
	text, rpcErr := p.str(0, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	codec := s.chain.Codec()
	addr, err := codec.Decode(text)
	if err != nil {
		return &ValidateAddressResult{IsValid: false}, nil
	}
	canonical, err := codec.Encode(addr)
	if err != nil {
		return &ValidateAddressResult{IsValid: false}, nil
	}
	res := &ValidateAddressResult{
		IsValid:     true,
		Address:     canonical,
		Space:       addr.Space.String(),
		Type:        addr.Type.String(),
		Convertible: address.IsEligibleForConversion(addr),
	}
	if rec, err := s.keys.PublicKey(addr); err == nil {
		res.IsMine = true
		res.KeyID = rec.ID.String()
		res.Label = rec.Label
	}
	return res, nil
}

// ── Keys ────────────────────────────────────────────────────────────────

func (s *Server) handleImportPrivKey(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 3); err != nil {
		return nil, err
	}
	secret, rpcErr := p.str(0, "privkey")
	if rpcErr != nil {
		return nil, rpcErr
	}
	label, rpcErr := p.optStr(1, "label", "")
	if rpcErr != nil {
		return nil, rpcErr
	}
	// The third bitcoind parameter (rescan) is accepted and ignored: the
	// history index is keyed by owner, so no rescan is needed.
	if _, err := s.keys.ImportPrivateKey(secret, label); err != nil {
		if errors.Is(err, keystore.ErrInvalidKey) {
			return nil, &Error{Code: CodeInvalidAddressOrKey, Message: "Invalid private key encoding"}
		}
		return nil, toRPCError(err)
	}
	return nil, nil
}

func (s *Server) handleGetNewAddress(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 2); err != nil {
		return nil, err
	}
	label, rpcErr := p.optStr(0, "label", "")
	if rpcErr != nil {
		return nil, rpcErr
	}
	kindText, rpcErr := p.optStr(1, "address_type", "")
	if rpcErr != nil {
		return nil, rpcErr
	}
	kind, err := address.ParseKind(kindText)
	if err != nil {
		return nil, &Error{Code: CodeInvalidAddressOrKey, Message: fmt.Sprintf("Unknown address type '%s'", kindText)}
	}
	text, rpcErr := s.newAddress(label, kind)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return text, nil
}

// newAddress derives the next wallet key, registers it with the key store
// and returns its address of the given kind.
func (s *Server) newAddress(label string, kind address.Kind) (string, *Error) {
	s.walletMu.Lock()
	w := s.wallet
	s.walletMu.Unlock()
	if w == nil {
		return "", &Error{Code: CodeMisc, Message: "wallet is disabled"}
	}

	priv, index, err := w.NextKey()
	if err != nil {
		return "", toRPCError(fmt.Errorf("derive key: %w", err))
	}
	defer priv.Zero()
	pub := priv.PublicKey()
	if _, err := s.keys.ImportPublicKey(pub, false, label); err != nil {
		return "", toRPCError(err)
	}
	addr, err := s.chain.Codec().Derive(pub, kind)
	if err != nil {
		return "", toRPCError(err)
	}
	s.logger.Debug().Uint32("index", index).Str("kind", string(kind)).Msg("New wallet address")
	return addr.Text, nil
}

// ownedAddresses returns the text of every address the key store holds,
// sorted so callers pick among them deterministically.
func (s *Server) ownedAddresses() []string {
	addrs := s.keys.Addresses()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Text)
	}
	sort.Strings(out)
	return out
}

// requireOwned normalizes text and checks that the wallet holds its key.
func (s *Server) requireOwned(text string) (string, *Error) {
	owner, err := s.chain.NormalizeOwner(text)
	if err != nil {
		return "", toRPCError(err)
	}
	addr, err := s.chain.Codec().Decode(owner)
	if err != nil {
		return "", toRPCError(err)
	}
	if !s.keys.HasKey(addr) {
		return "", &Error{Code: CodeInvalidAddressOrKey, Message: "Incorrect authorization for " + text}
	}
	return owner, nil
}
