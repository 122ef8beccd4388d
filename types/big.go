package types

import (
	"fmt"
	"math/big"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number, as snarkjs does for field elements.
type BigInt big.Int

// NewBigInt returns a BigInt holding a copy of the given big.Int
func NewBigInt(x *big.Int) *BigInt {
	return (*BigInt)(new(big.Int).Set(x))
}

// NewInt returns a BigInt holding the given uint64
func NewInt(x uint64) *BigInt {
	return (*BigInt)(new(big.Int).SetUint64(x))
}

// MarshalText returns the decimal string representation of the big number.
// A nil receiver marshals as "0".
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return (*big.Int)(i).MarshalText()
}

// UnmarshalText parses the decimal text representation into the big number
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	if _, ok := (*big.Int)(i).SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid decimal number: %q", data)
	}
	return nil
}

// UnmarshalJSON supports both the quoted and the numeric JSON
// representations.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	if len(data) > 1 && data[0] == '"' && data[len(data)-1] == '"' {
		return i.UnmarshalText(data[1 : len(data)-1])
	}
	return i.UnmarshalText(data)
}

// String returns the decimal representation of the big number
func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// Equal returns true if i and j hold the same number. Two nil values are
// equal.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return i == j
	}
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}

// MathBigInt converts i to a math/big *Int
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// BigIntsToMath converts a slice of BigInt into a slice of math/big *Int.
// nil entries are kept as nil.
func BigIntsToMath(s []*BigInt) []*big.Int {
	r := make([]*big.Int, len(s))
	for i := range s {
		if s[i] != nil {
			r[i] = s[i].MathBigInt()
		}
	}
	return r
}
