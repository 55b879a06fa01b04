package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/tx"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// maxGenerate bounds one generate call.
const maxGenerate = 10000

// CodeWalletInsufficientFunds is returned when no held address can pay.
const CodeWalletInsufficientFunds = -6

// ── Chain endpoints ─────────────────────────────────────────────────────

func (s *Server) handleGenerate(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 2); err != nil {
		return nil, err
	}
	n, rpcErr := p.int64At(0, "nblocks")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if n < 1 || n > maxGenerate {
		return nil, invalidParameter(fmt.Sprintf("nblocks must be between 1 and %d", maxGenerate))
	}
	target, rpcErr := p.optStr(1, "address", "")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if target == "" {
		if target, rpcErr = s.minerAddress(); rpcErr != nil {
			return nil, rpcErr
		}
	}

	hashes, err := s.chain.Generate(int(n), target)
	if err != nil {
		return nil, toRPCError(err)
	}
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	return out, nil
}

// minerAddress is the wallet address generate pays when none is given.
func (s *Server) minerAddress() (string, *Error) {
	s.walletMu.Lock()
	miner := s.miner
	s.walletMu.Unlock()
	if miner != "" {
		return miner, nil
	}
	text, rpcErr := s.newAddress("coinbase", address.KindBech32)
	if rpcErr != nil {
		if rpcErr.Code == CodeMisc {
			return "", invalidParameter("address is required when the wallet is disabled")
		}
		return "", rpcErr
	}
	s.walletMu.Lock()
	defer s.walletMu.Unlock()
	if s.miner == "" {
		s.miner = text
	}
	return s.miner, nil
}

func (s *Server) handleGetBlockCount(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 0); err != nil {
		return nil, err
	}
	return s.chain.Height(), nil
}

func (s *Server) handleGetBlockHash(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 1); err != nil {
		return nil, err
	}
	height, rpcErr := p.int64At(0, "height")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if height < 0 || uint64(height) > s.chain.Height() {
		return nil, invalidParameter("Block height out of range")
	}
	h, err := s.chain.BlockHash(uint64(height))
	if err != nil {
		return nil, toRPCError(err)
	}
	return h.String(), nil
}

func (s *Server) blockHashParam(p params) (types.Hash, *Error) {
	if err := p.requireLen(1, 1); err != nil {
		return types.Hash{}, err
	}
	text, rpcErr := p.str(0, "blockhash")
	if rpcErr != nil {
		return types.Hash{}, rpcErr
	}
	h, err := types.ParseHash(text)
	if err != nil {
		return types.Hash{}, invalidParameter("blockhash must be 32-byte hex")
	}
	return h, nil
}

func (s *Server) handleGetBlock(p params) (interface{}, *Error) {
	h, rpcErr := s.blockHashParam(p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := s.chain.Block(h)
	if err != nil {
		return nil, toRPCError(err)
	}
	return NewBlockResult(rec), nil
}

func (s *Server) handleInvalidateBlock(p params) (interface{}, *Error) {
	h, rpcErr := s.blockHashParam(p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	n, err := s.chain.InvalidateBlock(h)
	if err != nil {
		return nil, toRPCError(err)
	}
	s.logger.Info().Str("hash", h.String()).Int("removed", n).Msg("Block invalidated")
	return nil, nil
}

// ── Token and account endpoints ─────────────────────────────────────────

func (s *Server) submit(t *tx.Transaction) (interface{}, *Error) {
	h, err := s.chain.Submit(t)
	if err != nil {
		return nil, toRPCError(err)
	}
	return h.String(), nil
}

// coinPayer picks the first held address, preferred ones first, whose
// coins cover need.
func (s *Server) coinPayer(need types.Amount, preferred ...string) (string, *Error) {
	candidates := append(preferred, s.ownedAddresses()...)
	for _, c := range candidates {
		bal, err := s.chain.Balance(accounts.Coins, c, config.NativeToken)
		if err != nil {
			continue
		}
		if bal >= need {
			return c, nil
		}
	}
	return "", &Error{Code: CodeWalletInsufficientFunds, Message: fmt.Sprintf("Insufficient funds: no wallet address holds %s %s", need, config.NativeToken)}
}

func (s *Server) handleCreateToken(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 2); err != nil {
		return nil, err
	}
	var meta TokenMetadata
	if err := p.object(0, "metadata", &meta); err != nil {
		return nil, err
	}
	if meta.Symbol == "" {
		return nil, invalidParameter("symbol is required")
	}
	if meta.Collateral == "" {
		return nil, invalidParameter("collateralAddress is required")
	}
	collateral, err := s.chain.NormalizeOwner(meta.Collateral)
	if err != nil {
		return nil, toRPCError(err)
	}
	mintable := true
	if meta.Mintable != nil {
		mintable = *meta.Mintable
	}

	var preferred []string
	if _, rpcErr := s.requireOwned(collateral); rpcErr == nil {
		preferred = append(preferred, collateral)
	}
	payer, rpcErr := s.coinPayer(s.chain.Params().TokenCreationFee, preferred...)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(&tx.Transaction{
		Type: tx.TypeCreateToken,
		From: payer,
		Token: &tx.TokenSpec{
			Symbol:     meta.Symbol,
			Name:       meta.Name,
			Collateral: collateral,
			Mintable:   mintable,
		},
	})
}

func (s *Server) handleMintTokens(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 2); err != nil {
		return nil, err
	}
	amounts, rpcErr := parseAmountList(p[0], "amounts")
	if rpcErr != nil {
		return nil, rpcErr
	}
	for _, a := range amounts {
		tok, err := s.chain.Token(a.Token)
		if err != nil {
			// Tokens created in the same block are not committed yet; the
			// chain checks them when the mint is queued.
			continue
		}
		if tok.IsNative() {
			continue
		}
		if _, rpcErr := s.requireOwned(tok.Collateral); rpcErr != nil {
			return nil, &Error{Code: CodeInvalidAddressOrKey, Message: fmt.Sprintf("Need token %s owner authorization (%s)", tok.Symbol, tok.Collateral)}
		}
	}
	return s.submit(&tx.Transaction{Type: tx.TypeMintToken, Amounts: amounts})
}

func (s *Server) handleBurnTokens(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 1); err != nil {
		return nil, err
	}
	var req BurnRequest
	if err := p.object(0, "metadata", &req); err != nil {
		return nil, err
	}
	if req.From == "" {
		return nil, invalidParameter("from is required")
	}
	if len(req.Amounts) == 0 {
		return nil, invalidParameter("amounts is required")
	}
	from, rpcErr := s.requireOwned(req.From)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amounts, rpcErr := parseAmountList(req.Amounts, "amounts")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(&tx.Transaction{Type: tx.TypeBurnToken, From: from, Amounts: amounts})
}

func (s *Server) handleUtxosToAccount(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 2); err != nil {
		return nil, err
	}
	credits, total, rpcErr := s.credits(p[0], "to")
	if rpcErr != nil {
		return nil, rpcErr
	}
	payer, rpcErr := s.coinPayer(total)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(&tx.Transaction{Type: tx.TypeUtxosToAccount, From: payer, To: credits})
}

func (s *Server) handleAccountToAccount(p params) (interface{}, *Error) {
	if err := p.requireLen(2, 3); err != nil {
		return nil, err
	}
	fromText, rpcErr := p.str(0, "from")
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := s.requireOwned(fromText)
	if rpcErr != nil {
		return nil, rpcErr
	}
	credits, _, rpcErr := s.credits(p[1], "to")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(&tx.Transaction{Type: tx.TypeAccountToAccount, From: from, To: credits})
}

// credits decodes an {address: amounts} object. total sums only the
// native token amounts.
func (s *Server) credits(raw json.RawMessage, name string) ([]tx.Credit, types.Amount, *Error) {
	owners, amounts, rpcErr := parseRecipients(raw, name)
	if rpcErr != nil {
		return nil, 0, rpcErr
	}
	var total types.Amount
	out := make([]tx.Credit, 0, len(owners))
	for _, o := range owners {
		owner, err := s.chain.NormalizeOwner(o)
		if err != nil {
			return nil, 0, toRPCError(err)
		}
		for _, a := range amounts[o] {
			if a.Token == config.NativeToken || a.Token == "0" {
				total += a.Amount
			}
		}
		out = append(out, tx.Credit{Owner: owner, Amounts: amounts[o]})
	}
	return out, total, nil
}

func (s *Server) handleListTokens(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 0); err != nil {
		return nil, err
	}
	tokens, err := s.chain.Tokens()
	if err != nil {
		return nil, toRPCError(err)
	}
	out := make(map[string]*token.Token, len(tokens))
	for _, t := range tokens {
		out[strconv.FormatUint(uint64(t.ID), 10)] = t
	}
	return out, nil
}

func (s *Server) handleGetAccount(p params) (interface{}, *Error) {
	if err := p.requireLen(1, 1); err != nil {
		return nil, err
	}
	owner, rpcErr := p.str(0, "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	balances, err := s.chain.Balances(accounts.Accounts, owner)
	if err != nil {
		return nil, toRPCError(err)
	}
	out := make([]string, len(balances))
	for i, b := range balances {
		out[i] = b.String()
	}
	return out, nil
}

// handleGetBalance sums the coins of every held address.
func (s *Server) handleGetBalance(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 0); err != nil {
		return nil, err
	}
	var total types.Amount
	for _, a := range s.ownedAddresses() {
		bal, err := s.chain.Balance(accounts.Coins, a, config.NativeToken)
		if err != nil {
			continue
		}
		total += bal
	}
	return json.Number(total.String()), nil
}
