package entity

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Limit is the authorization cap of an approval level. It is either bounded
// by a maximum value or unlimited; there is no sentinel "very large number".
type Limit struct {
	unlimited bool
	max       decimal.Decimal
}

// Unlimited returns a limit that authorizes any value
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// Bounded returns a limit capped at max
func Bounded(max decimal.Decimal) Limit {
	return Limit{max: max}
}

// IsUnlimited reports whether the limit authorizes any value
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Max returns the cap and true for a bounded limit, or zero and false for an
// unlimited one
func (l Limit) Max() (decimal.Decimal, bool) {
	if l.unlimited {
		return decimal.Decimal{}, false
	}
	return l.max, true
}

// Allows reports whether the limit authorizes the given value. The boundary
// is inclusive: a value equal to the cap is allowed.
func (l Limit) Allows(value decimal.Decimal) bool {
	if l.unlimited {
		return true
	}
	return value.LessThanOrEqual(l.max)
}

// String returns a human-readable form of the limit
func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return l.max.String()
}

type limitJSON struct {
	Unlimited bool   `json:"unlimited"`
	Max       string `json:"max,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal(limitJSON{Unlimited: true})
	}
	return json.Marshal(limitJSON{Max: l.max.String()})
}

// UnmarshalJSON implements json.Unmarshaler
func (l *Limit) UnmarshalJSON(data []byte) error {
	var raw limitJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Unlimited {
		*l = Unlimited()
		return nil
	}
	max, err := decimal.NewFromString(raw.Max)
	if err != nil {
		return fmt.Errorf("invalid limit max %q: %w", raw.Max, err)
	}
	*l = Bounded(max)
	return nil
}
