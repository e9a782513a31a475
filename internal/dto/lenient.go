package dto

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Money columns are decimal(12,2): at most ten integer digits.
const (
	moneyIntegerDigits = 10
	moneyMaxScale      = 20
)

// MaxMoney is the largest amount a money column can store.
var MaxMoney = decimal.RequireFromString("9999999999.99")

// InMoneyRange reports whether v fits a money column once rounded to cents.
// It only inspects exponent and digit count, so it is safe on inputs such as
// 1e30000000 that would be expensive to expand.
func InMoneyRange(v decimal.Decimal) bool {
	exp := int(v.Exponent())
	if exp > moneyIntegerDigits || exp < -moneyMaxScale {
		return false
	}
	return v.NumDigits()+exp <= moneyIntegerDigits
}

// LenientDecimal accepts a JSON number or numeric string. Anything that does
// not parse, null, a negative value, or an amount too large for a money
// column decodes to zero instead of failing the whole request.
type LenientDecimal struct {
	decimal.Decimal
}

func (d *LenientDecimal) UnmarshalJSON(b []byte) error {
	d.Decimal = decimal.Zero
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() || !InMoneyRange(v) {
		return nil
	}
	d.Decimal = v
	return nil
}

func (d LenientDecimal) MarshalJSON() ([]byte, error) { return d.Decimal.MarshalJSON() }

const dateOnly = "2006-01-02"

// Date accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date, which is
// read as midnight UTC. Other values fail with a *json.UnmarshalTypeError so
// the caller can report the offending field.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &json.UnmarshalTypeError{Value: "non-string", Type: reflect.TypeOf(Date{})}
	}
	s = strings.TrimSpace(s)
	if v, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = v.UTC()
		return nil
	}
	v, err := time.Parse(dateOnly, s)
	if err != nil {
		return &json.UnmarshalTypeError{Value: "string", Type: reflect.TypeOf(Date{})}
	}
	d.Time = v.UTC()
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.Time) }

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }
