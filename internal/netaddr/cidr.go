// Package netaddr provides pure address and endpoint primitives: CIDR and
// host:port parsing, containment, overlap, and canonicalisation. No
// component here performs I/O or carries state across calls.
package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
)

var (
	// ErrInvalidAddress is returned when a CIDR or bare address fails to
	// parse, or when no covering prefix can be formed. A prefix with host
	// bits set is not rejected by this package.
	ErrInvalidAddress = errors.New("netaddr: invalid address")
	// ErrInvalidEndpoint is returned when a host:port string fails to
	// parse or carries an out-of-range port.
	ErrInvalidEndpoint = errors.New("netaddr: invalid endpoint")
)

// ParsePrefix parses a CIDR string ("10.0.0.0/16", "fd00::/8"), wrapping
// netip.ParsePrefix's error in ErrInvalidAddress. Like netip.ParsePrefix
// it does not require the address to already be masked; callers that need
// a canonical network (dropping host bits) should call Masked() on the
// result.
func ParsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return p, nil
}

// HostPrefix parses a bare address and returns its host route: the address
// with a full-width prefix (/32 for IPv4, /128 for IPv6).
func HostPrefix(s string) (netip.Prefix, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// Masked returns p with host bits zeroed, i.e. the network address for
// p's prefix length.
func Masked(p netip.Prefix) netip.Prefix {
	return p.Masked()
}

// IsHostRoute reports whether p is a full-width prefix (a route to exactly
// one address).
func IsHostRoute(p netip.Prefix) bool {
	return p.Bits() == p.Addr().BitLen()
}

// Contains reports whether a strictly or non-strictly contains b: every
// address in b is also in a.
func Contains(a, b netip.Prefix) bool {
	if a.Addr().Is4() != b.Addr().Is4() {
		return false
	}
	if b.Bits() < a.Bits() {
		return false
	}
	return a.Masked().Contains(b.Addr()) || a.Masked() == b.Masked()
}

// Overlap reports whether a and b share any address: neither is disjoint
// from the other, in either containment direction.
func Overlap(a, b netip.Prefix) bool {
	if a.Addr().Is4() != b.Addr().Is4() {
		return false
	}
	return Contains(a, b) || Contains(b, a)
}

// Equal reports whether a and b denote the identical network (same family,
// same masked address, same prefix length).
func Equal(a, b netip.Prefix) bool {
	return a.Masked() == b.Masked()
}

// Canonicalise deduplicates a list of prefixes, drops entries strictly
// contained by another entry in the list, and sorts the result by
// (family, prefix-length descending, network address) as required for
// deterministic, reproducible allowed_ips lists.
func Canonicalise(prefixes []netip.Prefix) []netip.Prefix {
	if len(prefixes) == 0 {
		return nil
	}
	masked := make([]netip.Prefix, 0, len(prefixes))
	seen := make(map[netip.Prefix]bool, len(prefixes))
	for _, p := range prefixes {
		m := p.Masked()
		if seen[m] {
			continue
		}
		seen[m] = true
		masked = append(masked, m)
	}

	dropped := make(map[netip.Prefix]bool, len(masked))
	for _, outer := range masked {
		for _, inner := range masked {
			if outer == inner {
				continue
			}
			if dropped[inner] {
				continue
			}
			// outer strictly contains inner: outer is wider (fewer bits)
			// and inner's network sits inside it.
			if outer.Bits() < inner.Bits() && outer.Contains(inner.Addr()) {
				dropped[inner] = true
			}
		}
	}

	out := make([]netip.Prefix, 0, len(masked))
	for _, p := range masked {
		if !dropped[p] {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Addr().Is4() != b.Addr().Is4() {
			return a.Addr().Is4() // IPv4 before IPv6
		}
		if a.Bits() != b.Bits() {
			return a.Bits() > b.Bits() // more specific first
		}
		return a.Addr().Less(b.Addr())
	})
	return out
}

// SmallestCoveringPrefix returns the narrowest single prefix that contains
// every address in addrs (all of one family). Used to resolve the
// "<group>.subnet" symbolic routing token (spec.md §4.5): the smallest CIDR
// covering the wireguard_ips of a group's members.
func SmallestCoveringPrefix(addrs []netip.Addr) (netip.Prefix, error) {
	if len(addrs) == 0 {
		return netip.Prefix{}, fmt.Errorf("%w: no addresses to cover", ErrInvalidAddress)
	}
	bitLen := addrs[0].BitLen()
	for _, a := range addrs {
		if a.BitLen() != bitLen {
			return netip.Prefix{}, fmt.Errorf("%w: mixed address families cannot share a covering prefix", ErrInvalidAddress)
		}
	}
	for bits := bitLen; bits >= 0; bits-- {
		p := netip.PrefixFrom(addrs[0], bits).Masked()
		covers := true
		for _, a := range addrs[1:] {
			if !p.Contains(a) {
				covers = false
				break
			}
		}
		if covers {
			return p, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("%w: no covering prefix found", ErrInvalidAddress)
}

// FormatPrefixes renders prefixes in their canonical string form, in the
// slice's existing order.
func FormatPrefixes(prefixes []netip.Prefix) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}
