// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// URLValidationOptions configures ValidateURL
type URLValidationOptions struct {
	// AllowPrivateIPs permits loopback, private and link-local address
	// literals and localhost, e.g. a storage emulator.
	AllowPrivateIPs bool
	// AllowedSchemes specifies permitted URL schemes (default: https, http)
	AllowedSchemes []string
	// AllowedHostSuffixes restricts the host, e.g. ".blob.core.windows.net"
	AllowedHostSuffixes []string
}

// OperatorEndpointOptions is used for base URLs set by the operator: a
// storage endpoint override or a record store URL. Emulators on private
// addresses are allowed.
func OperatorEndpointOptions() URLValidationOptions {
	return URLValidationOptions{AllowPrivateIPs: true}
}

// ValidateURL checks that rawURL is a usable base URL: an allowed scheme, a
// host, no user info and no query or fragment. Credentials are appended to
// these URLs as the query string, so the base must carry none. No DNS
// lookup is made; only address literals and localhost count as private.
func ValidateURL(rawURL string, opts URLValidationOptions) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	schemes := opts.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"https", "http"}
	}
	if !containsFold(schemes, u.Scheme) {
		return fmt.Errorf("URL scheme %q is not allowed; permitted schemes: %v", u.Scheme, schemes)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must contain a hostname")
	}
	if u.User != nil {
		return fmt.Errorf("URL must not contain user info")
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return fmt.Errorf("URL must not contain a query or fragment")
	}

	if len(opts.AllowedHostSuffixes) > 0 && !hasSuffixFold(host, opts.AllowedHostSuffixes) {
		return fmt.Errorf("hostname %q is not in the allowed list", host)
	}

	if !opts.AllowPrivateIPs && isPrivateHost(host) {
		return fmt.Errorf("private or loopback host %q is not allowed", host)
	}
	return nil
}

var (
	thisNetwork = netip.MustParsePrefix("0.0.0.0/8")
	carrierNAT  = netip.MustParsePrefix("100.64.0.0/10")
	reservedV4  = netip.MustParsePrefix("240.0.0.0/4")
)

func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return isPrivateAddr(addr)
}

// isPrivateAddr reports loopback, private, link-local, multicast and
// otherwise non-routable addresses.
func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	return thisNetwork.Contains(addr) || carrierNAT.Contains(addr) || reservedV4.Contains(addr)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func hasSuffixFold(host string, suffixes []string) bool {
	host = strings.ToLower(host)
	for _, suffix := range suffixes {
		if strings.HasSuffix(host, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// ValidatePathSegment rejects values that would change the shape of a URL
// when spliced in as a single host label or path segment.
func ValidatePathSegment(value string) error {
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}
	if value == "." || value == ".." {
		return fmt.Errorf("value %q is a dot segment", value)
	}
	if strings.ContainsAny(value, "/?#@:\\%") {
		return fmt.Errorf("value %q contains reserved URL characters", value)
	}
	for _, r := range value {
		if r <= ' ' || r == 0x7f {
			return fmt.Errorf("value %q contains whitespace or control characters", value)
		}
	}
	return nil
}

// maxLogTextLength bounds remote text copied into log entries and errors.
const maxLogTextLength = 500

var (
	ansiEscape     = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	lineBreakQuote = strings.NewReplacer("\n", `\n`, "\r", `\r`)
)

// SanitizeLogString makes remote text, such as an error body from a record
// store, safe to log: line breaks are escaped, terminal escapes dropped and
// the result truncated on a rune boundary.
func SanitizeLogString(s string) string {
	s = ansiEscape.ReplaceAllString(lineBreakQuote.Replace(s), "")
	if len(s) <= maxLogTextLength {
		return s
	}
	cut := maxLogTextLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}

// maxSQLIdentifierLength is the PostgreSQL limit, which MySQL also accepts.
const maxSQLIdentifierLength = 63

var sqlIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var sqlReservedWords = map[string]struct{}{
	"ALL": {}, "ALTER": {}, "AND": {}, "AS": {}, "BY": {}, "CASCADE": {},
	"CREATE": {}, "DATABASE": {}, "DELETE": {}, "DISTINCT": {}, "DROP": {},
	"FALSE": {}, "FROM": {}, "GRANT": {}, "GROUP": {}, "HAVING": {},
	"INDEX": {}, "INSERT": {}, "INTO": {}, "JOIN": {}, "LIMIT": {}, "NOT": {},
	"NULL": {}, "OFFSET": {}, "ON": {}, "OR": {}, "ORDER": {}, "REVOKE": {},
	"SELECT": {}, "SET": {}, "TABLE": {}, "TRUE": {}, "TRUNCATE": {},
	"UNION": {}, "UPDATE": {}, "VALUES": {}, "WHERE": {},
}

// ValidateSQLIdentifier checks that a table, column or record field name
// can be quoted into a statement. Names become part of UPDATE statements,
// so only plain identifiers are accepted.
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(identifier) > maxSQLIdentifierLength {
		return fmt.Errorf("identifier %q is longer than %d characters", identifier, maxSQLIdentifierLength)
	}
	if !sqlIdentifier.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	if _, reserved := sqlReservedWords[strings.ToUpper(identifier)]; reserved {
		return fmt.Errorf("identifier %q is a SQL reserved word", identifier)
	}
	return nil
}
