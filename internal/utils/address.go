package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidAddressError is returned when a hex address field cannot be parsed
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address found: %s", e.Address)
}

// ParseAddress parses a hex address string (with or without a 0x prefix) into a uint64
func ParseAddress(addr string) (uint64, error) {
	hex := strings.TrimPrefix(addr, "0x")
	out, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, &InvalidAddressError{Address: addr}
	}
	return out, nil
}

// FixedWidth truncates or right pads s with spaces so it is exactly width characters wide
func FixedWidth(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
