package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Uint256 stores an 18-decimal token amount as NUMERIC(78,0).
type Uint256 struct {
	uint256.Int
}

func NewUint256(v *uint256.Int) Uint256 {
	var out Uint256
	if v != nil {
		out.Int.Set(v)
	}
	return out
}

func Uint256FromUint64(v uint64) Uint256 {
	var out Uint256
	out.Int.SetUint64(v)
	return out
}

// ParseUint256 parses a base-10 integer string.
func ParseUint256(raw string) (Uint256, error) {
	var out Uint256
	if err := out.Int.SetFromDecimal(raw); err != nil {
		return Uint256{}, fmt.Errorf("Uint256: parse %q: %w", raw, err)
	}
	return out, nil
}

// Big returns a copy of the value as *uint256.Int.
func (u Uint256) Big() *uint256.Int {
	return new(uint256.Int).Set(&u.Int)
}

func (u *Uint256) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		u.Int.Clear()
		return nil
	case string:
		return u.Int.SetFromDecimal(v)
	case []byte:
		return u.Int.SetFromDecimal(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("Uint256: negative value %d", v)
		}
		u.Int.SetUint64(uint64(v))
		return nil
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return fmt.Errorf("Uint256: non-integral value %v", v)
		}
		u.Int.SetUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("Uint256: unsupported Scan type %T", src)
	}
}

func (u Uint256) Value() (driver.Value, error) {
	return u.Int.Dec(), nil
}

func (u Uint256) String() string {
	return u.Int.Dec()
}

func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Int.Dec())
}

func (u *Uint256) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		u.Int.Clear()
		return nil
	}
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		raw = string(data)
	}
	return u.Int.SetFromDecimal(raw)
}
