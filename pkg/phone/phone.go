// Package phone normalises phone numbers and decides whether two renderings
// of a number refer to the same line.
package phone

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix
const DefaultRegion = "CN"

// minSuffixDigits guards the suffix fallback against short national numbers
const minSuffixDigits = 7

// ErrInvalidNumber is returned when a number cannot be parsed for the region
var ErrInvalidNumber = errors.New("invalid phone number")

// Parse parses raw for region, falling back to DefaultRegion
func Parse(raw, region string) (*phonenumbers.PhoneNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidNumber
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return nil, ErrInvalidNumber
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return nil, ErrInvalidNumber
	}
	return num, nil
}

// E164 formats raw as +{country}{national}
func E164(raw, region string) (string, error) {
	num, err := Parse(raw, region)
	if err != nil {
		return "", err
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// National returns the national significant number, the form the provider dials
func National(raw, region string) (string, error) {
	num, err := Parse(raw, region)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(num.GetNationalNumber(), 10), nil
}

// Same reports whether incoming refers to the stored number.
// Both sides are compared in E.164 when they parse; otherwise a digit suffix
// match of at least minSuffixDigits is accepted.
func Same(stored, incoming, region string) bool {
	a, errA := E164(stored, region)
	b, errB := E164(incoming, region)
	if errA == nil && errB == nil {
		return a == b
	}
	s, in := digits(stored), digits(incoming)
	if len(in) < minSuffixDigits || len(s) < len(in) {
		return false
	}
	return strings.HasSuffix(s, in)
}

// Mask hides the middle of a number for logs
func Mask(raw string) string {
	d := digits(raw)
	if len(d) <= 7 {
		return strings.Repeat("*", len(d))
	}
	return d[:3] + strings.Repeat("*", len(d)-7) + d[len(d)-4:]
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
