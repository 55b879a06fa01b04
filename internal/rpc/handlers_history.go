package rpc

import (
	"github.com/Klingon-tech/defiledger/internal/history"
)

// defaultHistoryLimit is the listaccounthistory/listburnhistory page size
// when the options object names none.
const defaultHistoryLimit = 100

func (s *Server) index() (*history.Indexer, *Error) {
	idx := s.chain.Index()
	if idx == nil {
		return nil, &Error{Code: CodeMisc, Message: "account history index is disabled, restart the node with -acindex"}
	}
	return idx, nil
}

// scope resolves an owner argument: "mine" is every held address, "all"
// is every account, anything else must be a valid address.
func (s *Server) scope(owner string) (history.Scope, *Error) {
	switch owner {
	case "mine":
		return history.Owners(s.ownedAddresses()...), nil
	case "all":
		return history.AllOwners(), nil
	}
	normalized, err := s.chain.NormalizeOwner(owner)
	if err != nil {
		return history.Scope{}, toRPCError(err)
	}
	return history.Owners(normalized), nil
}

func historyFilter(opts HistoryOptions, defaultLimit int) (history.Filter, *Error) {
	f := history.Filter{
		Type:           opts.TxType,
		Token:          opts.Token,
		MaxBlockHeight: opts.MaxBlockHeight,
		Depth:          opts.Depth,
		Limit:          defaultLimit,
	}
	if opts.Start != nil {
		if *opts.Start < 0 {
			return f, invalidParameter("start must be non-negative")
		}
		f.Start = *opts.Start
	}
	if opts.Limit != nil {
		if *opts.Limit < 0 {
			return f, invalidParameter("limit must be non-negative")
		}
		f.Limit = *opts.Limit
	}
	return f, nil
}

func (s *Server) handleListCustomTxTypes(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 0); err != nil {
		return nil, err
	}
	return s.chain.Registry().All(s.chain.Height()), nil
}

func (s *Server) handleListAccountHistory(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 2); err != nil {
		return nil, err
	}
	owner, rpcErr := p.optStr(0, "owner", "mine")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var opts HistoryOptions
	if err := p.object(1, "options", &opts); err != nil {
		return nil, err
	}
	idx, rpcErr := s.index()
	if rpcErr != nil {
		return nil, rpcErr
	}
	scope, rpcErr := s.scope(owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	f, rpcErr := historyFilter(opts, defaultHistoryLimit)
	if rpcErr != nil {
		return nil, rpcErr
	}
	entries, err := idx.List(scope, f)
	if err != nil {
		return nil, toRPCError(err)
	}
	return nonNil(entries), nil
}

func (s *Server) handleListBurnHistory(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 1); err != nil {
		return nil, err
	}
	var opts HistoryOptions
	if err := p.object(0, "options", &opts); err != nil {
		return nil, err
	}
	idx, rpcErr := s.index()
	if rpcErr != nil {
		return nil, rpcErr
	}
	f, rpcErr := historyFilter(opts, defaultHistoryLimit)
	if rpcErr != nil {
		return nil, rpcErr
	}
	entries, err := idx.ListBurns(f)
	if err != nil {
		return nil, toRPCError(err)
	}
	return nonNil(entries), nil
}

func (s *Server) handleAccountHistoryCount(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 2); err != nil {
		return nil, err
	}
	owner, rpcErr := p.optStr(0, "owner", "mine")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var opts HistoryOptions
	if err := p.object(1, "options", &opts); err != nil {
		return nil, err
	}
	idx, rpcErr := s.index()
	if rpcErr != nil {
		return nil, rpcErr
	}
	scope, rpcErr := s.scope(owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	f, rpcErr := historyFilter(opts, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	n, err := idx.Count(scope, f)
	if err != nil {
		return nil, toRPCError(err)
	}
	return n, nil
}

func (s *Server) handleGetIndexInfo(p params) (interface{}, *Error) {
	if err := p.requireLen(0, 0); err != nil {
		return nil, err
	}
	idx := s.chain.Index()
	if idx == nil {
		return &IndexInfoResult{Enabled: false}, nil
	}
	height, hash, _ := idx.Tip()
	digest, err := idx.Digest()
	if err != nil {
		return nil, toRPCError(err)
	}
	return &IndexInfoResult{
		Enabled: true,
		Height:  height,
		Hash:    hash,
		Digest:  digest.String(),
		Synced:  height == s.chain.Height() && hash == s.chain.TipHash().String(),
	}, nil
}

// nonNil makes empty results encode as [] rather than null.
func nonNil(entries []history.Entry) []history.Entry {
	if entries == nil {
		return []history.Entry{}
	}
	return entries
}
