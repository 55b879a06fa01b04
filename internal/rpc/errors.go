package rpc

import (
	"errors"

	"github.com/Klingon-tech/defiledger/internal/accounts"
	"github.com/Klingon-tech/defiledger/internal/addressmap"
	"github.com/Klingon-tech/defiledger/internal/chain"
	"github.com/Klingon-tech/defiledger/internal/keystore"
	"github.com/Klingon-tech/defiledger/internal/mempool"
	"github.com/Klingon-tech/defiledger/internal/token"
	"github.com/Klingon-tech/defiledger/internal/txtype"
	"github.com/Klingon-tech/defiledger/pkg/address"
	"github.com/Klingon-tech/defiledger/pkg/crypto"
	"github.com/Klingon-tech/defiledger/pkg/tx"
)

// rejectErrors are operation failures reported as a rejected operation.
var rejectErrors = []error{
	accounts.ErrInsufficient,
	accounts.ErrOverflow,
	chain.ErrInactiveType,
	chain.ErrNotMintable,
	chain.ErrNativeToken,
	chain.ErrNotNativeToken,
	token.ErrSymbolTaken,
	token.ErrInvalidSymbol,
	token.ErrInvalidName,
	mempool.ErrAlreadyExists,
	mempool.ErrPoolFull,
	mempool.ErrValidation,
	tx.ErrUnsupportedType,
	tx.ErrMissingFrom,
	tx.ErrUnexpectedFrom,
	tx.ErrNoCredits,
	tx.ErrNoAmounts,
	tx.ErrBadAmount,
	tx.ErrAmountOverflow,
	tx.ErrMissingToken,
	tx.ErrTooManyCredits,
	tx.ErrTooManyAmounts,
	tx.ErrBadVersion,
}

// toRPCError is the one place application errors become wire codes.
func toRPCError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var keyErr *addressmap.KeyNotFoundError
	if errors.As(err, &keyErr) {
		return &Error{Code: CodeInvalidAddressOrKey, Message: keyErr.Error()}
	}

	switch {
	case errors.Is(err, addressmap.ErrInvalidParameter):
		return &Error{Code: CodeInvalidParameter, Message: "Invalid type parameter"}
	case errors.Is(err, txtype.ErrUnknownType):
		return &Error{Code: CodeInvalidParameter, Message: err.Error()}
	case errors.Is(err, chain.ErrInvalidOwner),
		errors.Is(err, address.ErrInvalidFormat),
		errors.Is(err, keystore.ErrInvalidKey),
		errors.Is(err, keystore.ErrNotFound),
		errors.Is(err, crypto.ErrWIFNetwork):
		return &Error{Code: CodeInvalidAddressOrKey, Message: err.Error()}
	case errors.Is(err, token.ErrNotFound),
		errors.Is(err, chain.ErrBlockNotFound),
		errors.Is(err, chain.ErrNotActive):
		return &Error{Code: CodeInvalidAddressOrKey, Message: err.Error()}
	case errors.Is(err, chain.ErrMiningDisabled):
		return &Error{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, chain.ErrGenesisReorg):
		return &Error{Code: CodeInvalidParameter, Message: err.Error()}
	}
	for _, target := range rejectErrors {
		if errors.Is(err, target) {
			return &Error{Code: CodeVerifyRejected, Message: err.Error()}
		}
	}
	return &Error{Code: CodeMisc, Message: err.Error()}
}
