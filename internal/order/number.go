package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is an optional decimal request field. Webhook senders emit numbers,
// numeric strings, "NaN" or "" interchangeably; the last two mean "not set".
type Number struct {
	value decimal.Decimal
	set   bool
}

// NewNumber returns a set Number.
func NewNumber(v float64) Number {
	return Number{value: decimal.NewFromFloat(v), set: true}
}

// NumberOf wraps an existing decimal.
func NumberOf(d decimal.Decimal) Number {
	return Number{value: d, set: true}
}

// ParseNumber parses s, treating "", "NaN" and "null" as unset.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if isAbsent(s) || strings.EqualFold(s, "null") {
		return Number{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return Number{}, fmt.Errorf("not a number: %q", s)
	}
	return Number{value: d, set: true}, nil
}

func (n Number) IsSet() bool { return n.set }

func (n Number) Decimal() decimal.Decimal { return n.value }

func (n Number) Float64() float64 {
	f, _ := n.value.Float64()
	return f
}

func (n Number) String() string {
	if !n.set {
		return ""
	}
	return n.value.String()
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	parsed, err := ParseNumber(string(data))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return []byte(n.value.String()), nil
}

func isAbsent(s string) bool {
	return s == "" || s == "NaN"
}
