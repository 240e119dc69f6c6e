// Package money provides cent-precision monetary amounts.
//
// All engine arithmetic happens on integer cents so tolerance comparisons
// are exact; floats only appear at the JSON boundary.
package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Cents is a monetary amount in integer cents.
type Cents int64

var (
	printer = message.NewPrinter(language.English)
	tokenRE = regexp.MustCompile(`^[+-]?\$?\d[\d,]*(\.\d{1,2})?$`)
)

// FromDollars converts a dollar amount to cents, rounding half away from zero.
func FromDollars(d float64) Cents {
	return Cents(math.Round(d * 100))
}

// Parse converts a money token such as "$1,234.56" or "-42.10" to cents.
func Parse(s string) (Cents, error) {
	token := strings.TrimSpace(s)
	if !tokenRE.MatchString(token) {
		return 0, eris.Errorf("money: invalid token %q", s)
	}
	token = strings.ReplaceAll(token, "$", "")
	token = strings.ReplaceAll(token, ",", "")

	sign := Cents(1)
	switch {
	case strings.HasPrefix(token, "-"):
		sign = -1
		token = token[1:]
	case strings.HasPrefix(token, "+"):
		token = token[1:]
	}

	whole := token
	frac := "00"
	if i := strings.IndexByte(token, '.'); i >= 0 {
		whole = token[:i]
		frac = token[i+1:]
		if len(frac) == 1 {
			frac += "0"
		}
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "money: parse %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "money: parse %q", s)
	}
	return sign * Cents(w*100+f), nil
}

// Dollars returns the amount as a float64 dollar value.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// String formats the amount as "$1,234.56" with digit grouping.
func (c Cents) String() string {
	v := c
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return printer.Sprintf("%s$%d.%02d", sign, int64(v/100), int64(v%100))
}

// Format renders an optional amount, using "n/a" for nil.
func Format(c *Cents) string {
	if c == nil {
		return "n/a"
	}
	return c.String()
}

// Ptr returns a pointer to c. Convenient for optional fields in literals.
func Ptr(c Cents) *Cents {
	return &c
}
