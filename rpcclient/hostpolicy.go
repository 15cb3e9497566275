// Copyright (c) 2024-2025 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"fmt"
	"net/netip"
	"strings"
)

// cgnatPrefix is the carrier-grade NAT shared address space from RFC 6598.
var cgnatPrefix = netip.MustParsePrefix("100.64.0.0/10")

// HostPolicy decides which RPC targets the client is permitted to send
// credentials to.  It is built once at process start and handed to every
// component that needs it.
type HostPolicy struct {
	// AllowInsecure permits any target host, including public addresses and
	// names that are not literal IP addresses.
	AllowInsecure bool
}

// Check returns nil when the host portion of rawURL is permitted by the
// policy.  Otherwise it returns an Error with kind ErrUnsafeHost describing
// the rejected host.
func (p HostPolicy) Check(rawURL string) error {
	if p.AllowInsecure || IsSafeHost(rawURL) {
		return nil
	}
	host, ok := urlHost(rawURL)
	if !ok {
		str := fmt.Sprintf("rpc url %q has no host", rawURL)
		return makeError(ErrUnsafeHost, str)
	}
	str := fmt.Sprintf("rpc host %q must be localhost or a private address "+
		"unless insecure rpc is allowed", host)
	return makeError(ErrUnsafeHost, str)
}

// urlHost extracts the host from the authority section of rawURL.  The
// scheme, userinfo, port, path and query are stripped and IPv6 brackets are
// removed.  It returns false when rawURL has no scheme separator.
func urlHost(rawURL string) (string, bool) {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return "", false
	}
	authority := rawURL[idx+3:]
	if i := strings.IndexAny(authority, "/?#"); i >= 0 {
		authority = authority[:i]
	}
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}

	if strings.HasPrefix(authority, "[") {
		host := strings.TrimPrefix(authority, "[")
		if i := strings.IndexByte(host, ']'); i >= 0 {
			host = host[:i]
		}
		return host, true
	}
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		authority = authority[:i]
	}
	return authority, true
}

// IsSafeHost returns whether the host of rawURL is the literal localhost or an
// IP literal in a loopback, private, carrier-grade NAT, unique-local or
// link-local range.  Host names other than localhost are never considered
// safe since they are not resolved.
func IsSafeHost(rawURL string) bool {
	host, ok := urlHost(rawURL)
	if !ok {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return isSafeAddr(addr)
}

// isSafeAddr reports whether addr is in one of the permitted ranges.
// IPv4-mapped IPv6 addresses are only accepted for loopback and private IPv4
// addresses.
func isSafeAddr(addr netip.Addr) bool {
	addr = addr.WithZone("")
	if addr.Is4In6() {
		v4 := addr.Unmap()
		return v4.IsLoopback() || v4.IsPrivate()
	}
	if addr.Is4() {
		return addr.IsLoopback() || addr.IsPrivate() || cgnatPrefix.Contains(addr)
	}

	// IsPrivate covers the fc00::/7 unique-local block for IPv6.
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
