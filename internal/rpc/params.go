package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/Klingon-tech/defiledger/config"
	"github.com/Klingon-tech/defiledger/pkg/types"
)

// params is a request's positional parameter list.
type params []json.RawMessage

func parseParams(raw json.RawMessage) (params, *Error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams("params must be an array")
	}
	return p, nil
}

// has reports whether position i was given and is not null.
func (p params) has(i int) bool {
	return i < len(p) && !bytes.Equal(bytes.TrimSpace(p[i]), []byte("null"))
}

func (p params) decode(i int, name string, target interface{}) *Error {
	if err := json.Unmarshal(p[i], target); err != nil {
		return invalidParams(fmt.Sprintf("%s: %v", name, err))
	}
	return nil
}

func (p params) requireLen(min, max int) *Error {
	if len(p) < min || len(p) > max {
		return invalidParams(fmt.Sprintf("expected %d to %d params, got %d", min, max, len(p)))
	}
	return nil
}

func (p params) str(i int, name string) (string, *Error) {
	if !p.has(i) {
		return "", invalidParams(name + " is required")
	}
	var s string
	if err := p.decode(i, name, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (p params) optStr(i int, name, def string) (string, *Error) {
	if !p.has(i) {
		return def, nil
	}
	return p.str(i, name)
}

// int64At accepts a JSON number or a numeric string, as bitcoind clients
// send both.
func (p params) int64At(i int, name string) (int64, *Error) {
	if !p.has(i) {
		return 0, invalidParams(name + " is required")
	}
	var n json.Number
	if err := p.decode(i, name, &n); err != nil {
		var s string
		if json.Unmarshal(p[i], &s) != nil {
			return 0, err
		}
		n = json.Number(s)
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, invalidParams(fmt.Sprintf("%s: not an integer", name))
	}
	return v, nil
}

func (p params) object(i int, name string, target interface{}) *Error {
	if !p.has(i) {
		return nil
	}
	return p.decode(i, name, target)
}

// parseAmountList accepts "1.5@GOLD" or ["1.5@GOLD", "2@DFI"]. A bare
// amount is in the native token.
func parseAmountList(raw json.RawMessage, name string) ([]types.TokenAmount, *Error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, invalidParams(name + " must be an amount string or an array of them")
		}
		list = []string{single}
	}
	if len(list) == 0 {
		return nil, invalidParameter(name + " is empty")
	}
	out := make([]types.TokenAmount, 0, len(list))
	for _, s := range list {
		ta, err := types.ParseTokenAmount(s, config.NativeToken)
		if err != nil {
			return nil, invalidParameter(fmt.Sprintf("%s: %v", name, err))
		}
		out = append(out, ta)
	}
	return out, nil
}

// parseRecipients decodes an {address: amounts} object. Recipients come
// back sorted by address, so the operation is the same whatever key order
// the client used.
func parseRecipients(raw json.RawMessage, name string) ([]string, map[string][]types.TokenAmount, *Error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		return nil, nil, invalidParams(name + " must be a non-empty {address: amounts} object")
	}
	owners := make([]string, 0, len(obj))
	amounts := make(map[string][]types.TokenAmount, len(obj))
	for owner, v := range obj {
		list, rpcErr := parseAmountList(v, name+"."+owner)
		if rpcErr != nil {
			return nil, nil, rpcErr
		}
		owners = append(owners, owner)
		amounts[owner] = list
	}
	sort.Strings(owners)
	return owners, amounts, nil
}
