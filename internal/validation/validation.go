// Package validation bounds user-supplied locations and stock symbols. Places are
// free text: anything non-empty within the configured length is accepted and an
// unknown place simply degrades at the feed.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrLocationEmpty    = errors.New("location is required")
	ErrLocationTooShort = errors.New("location too short")
	ErrLocationTooLong  = errors.New("location too long")

	ErrTooManySymbols = errors.New("too many stock symbols")
	ErrSymbolInvalid  = errors.New("invalid stock symbol")
)

// maxSymbolLen is in runes and covers suffixed tickers such as "RDS-A.AS" or "BRK/B".
const maxSymbolLen = 16

// Limits holds the configurable bounds shared by the server and the terminal client.
type Limits struct {
	LocationMinLength int
	LocationMaxLength int
	MaxSymbols        int
}

// DefaultLimits matches the server's configuration defaults.
func DefaultLimits() Limits {
	return Limits{LocationMinLength: 1, LocationMaxLength: 100, MaxSymbols: 20}
}

// WithDefaults fills unset fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.LocationMinLength <= 0 {
		l.LocationMinLength = d.LocationMinLength
	}
	if l.LocationMaxLength <= 0 {
		l.LocationMaxLength = d.LocationMaxLength
	}
	if l.MaxSymbols <= 0 {
		l.MaxSymbols = d.MaxSymbols
	}
	return l
}

func (l Limits) Location(input string) (string, error) {
	return ValidateLocation(input, l.LocationMinLength, l.LocationMaxLength)
}

func (l Limits) Symbols(symbols []string) error {
	return ValidateSymbols(symbols, l.MaxSymbols)
}

// ValidateLocation trims the input and enforces length bounds (minLen, maxLen in
// runes, <= 0 disables). Returns the trimmed string or an error suitable for
// 400 INVALID_LOCATION responses.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	return s, nil
}

// ValidateSymbols checks a watch list as produced by preferences.ParseSymbols.
// An empty list is valid; max <= 0 disables the count limit.
func ValidateSymbols(symbols []string, max int) error {
	if max > 0 && len(symbols) > max {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManySymbols, len(symbols), max)
	}
	for _, s := range symbols {
		if !validSymbol(s) {
			return fmt.Errorf("%w: %q", ErrSymbolInvalid, s)
		}
	}
	return nil
}

// validSymbol rejects only what cannot round-trip through a comma-separated
// list: blanks, commas, surrounding space, control characters and overlong input.
func validSymbol(s string) bool {
	if s == "" || s != strings.TrimSpace(s) || utf8.RuneCountInString(s) > maxSymbolLen {
		return false
	}
	for _, c := range s {
		if c == ',' || unicode.IsControl(c) {
			return false
		}
	}
	return true
}
