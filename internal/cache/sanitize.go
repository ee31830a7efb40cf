package cache

import (
	"encoding/json"
	"math/big"
)

// Sanitize encodes v as JSON with arbitrary-precision integers rendered as
// decimal strings. Domain types carry domain.BigInt, which already marshals
// that way; bare big.Int values and the common containers of them are
// converted here.
func Sanitize(v any) ([]byte, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return []byte("null"), nil
		}
		return json.Marshal(x.String())
	case big.Int:
		return json.Marshal(x.String())
	case []*big.Int:
		out := make([]*string, len(x))
		for i, n := range x {
			if n != nil {
				s := n.String()
				out[i] = &s
			}
		}
		return json.Marshal(out)
	case map[string]*big.Int:
		out := make(map[string]*string, len(x))
		for k, n := range x {
			if n != nil {
				s := n.String()
				out[k] = &s
			} else {
				out[k] = nil
			}
		}
		return json.Marshal(out)
	}
	return json.Marshal(v)
}
