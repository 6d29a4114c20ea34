package crypto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid protocol version")

// Version identifies a client protocol revision (major.minor.patch).
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// String returns the dotted form, e.g. "6.0.14".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
		}
		nums[i] = uint32(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// KeyTriple holds the three per-version constants of the cipher's mixing step.
type KeyTriple struct {
	K1 uint32
	K2 uint32
	K3 uint32
}

// String formats the triple as hex words.
func (k KeyTriple) String() string {
	return fmt.Sprintf("%08X:%08X:%08X", k.K1, k.K2, k.K3)
}

// DeriveKey computes the login key triple the client binary of version v uses.
// Every known release in the 2.0.0+ line follows this formula.
func DeriveKey(v Version) KeyTriple {
	a, b, c := v.Major, v.Minor, v.Patch

	t := ((((a << 9) | b) << 10) | c) ^ ((c * c) << 5)
	k2 := (t << 4) ^ (b * b) ^ (b * 0x0B000000) ^ (c * 0x00380000) ^ 0x2C13A5FD

	t = (((((a << 9) | c) << 10) | b) * 8) ^ (c * c * 0x0C00)
	k3 := t ^ (b * b) ^ (b * 0x06800000) ^ (c * 0x001C0000) ^ 0xA31D527F

	return KeyTriple{K1: k2 - 1, K2: k2, K3: k3}
}
