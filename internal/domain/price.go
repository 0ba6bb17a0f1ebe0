package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is the catalog price exactly as it was captured at add-time. The
// catalog has served strings, numbers and nulls over time, so the raw JSON
// value is kept verbatim and only coerced when a total is needed.
type Price struct {
	raw json.RawMessage
}

func NumericPrice(d decimal.Decimal) Price {
	return Price{raw: json.RawMessage(d.String())}
}

func StringPrice(s string) Price {
	raw, _ := json.Marshal(s)
	return Price{raw: raw}
}

// RawPrice wraps an arbitrary decoded value (as found in a catalog document).
func RawPrice(v interface{}) Price {
	if v == nil {
		return Price{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Price{}
	}
	return Price{raw: raw}
}

// Amount coerces the price to a decimal. Anything that is not a number or a
// numeric string counts as zero.
func (p Price) Amount() decimal.Decimal {
	raw := bytes.TrimSpace(p.raw)
	if len(raw) == 0 {
		return decimal.Zero
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		return parseAmount(s)
	case c == '-' || (c >= '0' && c <= '9'):
		return parseAmount(string(raw))
	default:
		return decimal.Zero
	}
}

func (p Price) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Total sums the coerced prices of items.
func Total(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Service.Price.Amount())
	}
	return total
}
