// Package price handles price values from exchange and prediction market
// APIs without losing precision.
package price

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a fixed-point value scaled by PriceScale.
type Price int64

var _ json.Unmarshaler = (*Price)(nil)

const (
	PriceScale    int64 = 1_000_000
	priceDecimals int32 = 6
)

func (p *Price) UnmarshalJSON(data []byte) error {
	if len(data) > 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	// Else we assume that it is a raw number.
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("empty price")
	}

	var res int64
	i := 0

	for i < len(data) && data[i] != '.' {
		if data[i] < '0' || data[i] > '9' {
			return fmt.Errorf("invalid price %q", data)
		}
		res = res*10 + int64(data[i]-'0')*PriceScale
		i++
	}

	if i < len(data) && data[i] == '.' {
		i++
		mult := PriceScale
		for i < len(data) {
			if data[i] < '0' || data[i] > '9' {
				return fmt.Errorf("invalid price %q", data)
			}
			mult /= 10
			res += int64(data[i]-'0') * mult
			i++
		}
	}

	*p = Price(res)
	return nil
}

// Decimal returns the exact decimal value of p.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -priceDecimals)
}

func (p Price) Float64() float64 {
	return p.Decimal().InexactFloat64()
}

func (p Price) String() string {
	return p.Decimal().String()
}

// FromFloat rounds v to the nearest micro-unit.
func FromFloat(v float64) Price {
	return Price(decimal.NewFromFloat(v).Shift(priceDecimals).Round(0).IntPart())
}
