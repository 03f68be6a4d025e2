package ratecard

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Amount is either a single value (Min == Max) or a {min, max} range.
type Amount struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func Fixed(v decimal.Decimal) Amount { return Amount{Min: v, Max: v} }

func Between(lo, hi decimal.Decimal) Amount { return Amount{Min: lo, Max: hi} }

// MustAmount builds a scalar amount from a literal; it panics on malformed input.
func MustAmount(s string) Amount {
	return Fixed(decimal.RequireFromString(s))
}

func (a Amount) IsRange() bool { return !a.Min.Equal(a.Max) }

func (a Amount) String() string {
	if a.IsRange() {
		return a.Min.String() + "-" + a.Max.String()
	}
	return a.Min.String()
}

func (a Amount) validate() error {
	if a.Min.IsNegative() || a.Max.IsNegative() {
		return fmt.Errorf("negative value %s", a)
	}
	if a.Min.GreaterThan(a.Max) {
		return fmt.Errorf("range min %s exceeds max %s", a.Min, a.Max)
	}
	return nil
}

// UnmarshalYAML accepts `10`, `"12.5"` or `{min: 8, max: 12}`.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := decimal.NewFromString(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
		}
		*a = Fixed(v)
		return nil
	case yaml.MappingNode:
		var lo, hi *decimal.Decimal
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			v, err := decimal.NewFromString(val.Value)
			if err != nil {
				return fmt.Errorf("line %d: invalid number %q for %s", val.Line, val.Value, key)
			}
			switch key {
			case "min":
				lo = &v
			case "max":
				hi = &v
			default:
				return fmt.Errorf("line %d: unexpected key %q in range", node.Content[i].Line, key)
			}
		}
		if lo == nil || hi == nil {
			return fmt.Errorf("line %d: range needs both min and max", node.Line)
		}
		*a = Between(*lo, *hi)
		return nil
	default:
		return fmt.Errorf("line %d: expected a number or {min, max}", node.Line)
	}
}
