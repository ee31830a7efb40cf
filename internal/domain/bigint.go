package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// BigInt is an arbitrary-precision integer that always crosses a JSON
// boundary as a decimal string. The zero value is 0.
type BigInt struct {
	i *big.Int
}

// NewBigInt copies v. A nil v yields zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{}
	}
	return BigInt{i: new(big.Int).Set(v)}
}

// BigIntFromInt64 wraps a native integer.
func BigIntFromInt64(n int64) BigInt {
	return BigInt{i: big.NewInt(n)}
}

// ParseBigInt parses a base-10 integer string.
func ParseBigInt(s string) (BigInt, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return BigInt{}, fmt.Errorf("domain: invalid integer %q", s)
	}
	return BigInt{i: v}, nil
}

// Int returns a copy of the underlying value.
func (b BigInt) Int() *big.Int {
	if b.i == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.i)
}

func (b BigInt) String() string {
	if b.i == nil {
		return "0"
	}
	return b.i.String()
}

func (b BigInt) IsZero() bool { return b.i == nil || b.i.Sign() == 0 }

func (b BigInt) Sign() int {
	if b.i == nil {
		return 0
	}
	return b.i.Sign()
}

func (b BigInt) Cmp(o BigInt) int { return b.Int().Cmp(o.Int()) }

func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts both the canonical string form and a bare JSON
// number, so older payloads still decode.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*b = BigInt{}
		return nil
	}
	v, err := ParseBigInt(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
