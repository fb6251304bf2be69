package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for input that is not 0x followed by 40 hex digits
var ErrInvalidAddress = errors.New("invalid address")

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Address is a 20-byte account identifier in canonical lowercase hex form
type Address string

// Parse validates raw input and returns its canonical form.
// Surrounding whitespace is ignored; anything else malformed is rejected.
func Parse(raw string) (Address, error) {
	clean := strings.TrimSpace(raw)
	if !hexAddress.MatchString(clean) {
		return "", fmt.Errorf("%w: %q (want 0x followed by 40 hex digits)", ErrInvalidAddress, raw)
	}
	return Address(strings.ToLower(clean)), nil
}

// MustParse is Parse for constants and tests
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Normalize lowercases an address for lookups without validating it
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Equal reports whether two raw addresses refer to the same account
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func (a Address) String() string {
	return string(a)
}

// Common converts to the go-ethereum address type
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Checksum returns the EIP-55 mixed-case form for display
func (a Address) Checksum() string {
	return a.Common().Hex()
}

// Short returns a display form like 0x1234...abcd
func (a Address) Short() string {
	s := string(a)
	if len(s) < 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
