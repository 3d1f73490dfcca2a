// Package clienthdr parses and builds the Storefront-Client request header.
//
// Storefront UI builds identify themselves with an RFC 8941 structured field
// dictionary, e.g.:
//
//	Storefront-Client: version="1.4.0", role="admin"
//
// The version gates API compatibility; the role unlocks administrative
// visibility (inactive products) and is forwarded to the catalog backend as
// its own structured header.
package clienthdr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

const (
	// HeaderName is the inbound client identification header.
	HeaderName = "Storefront-Client"

	// RoleHeaderName is the outbound elevated-role marker added to catalog
	// requests made on behalf of an admin client.
	RoleHeaderName = "X-Storefront-Role"
)

// Roles understood by the storefront. Anything else is treated as customer.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Info is the parsed client identification.
type Info struct {
	Version string // semver without the "v" prefix, as sent on the wire
	Role    string // RoleCustomer or RoleAdmin
}

// IsAdmin reports whether the client asked for administrative visibility.
func (i Info) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ParseHeader extracts version and role from a Storefront-Client header.
// Returns an error if the header is empty, malformed, or missing the version key.
func ParseHeader(header string) (Info, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Info{}, errors.New("empty Storefront-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Info{}, fmt.Errorf("invalid Storefront-Client header: %w", err)
	}

	version, err := stringMember(dict, "version")
	if err != nil {
		return Info{}, err
	}

	info := Info{Version: version, Role: RoleCustomer}
	if role, err := stringMember(dict, "role"); err == nil && role == RoleAdmin {
		info.Role = RoleAdmin
	}
	return info, nil
}

// BuildRoleHeader serializes the elevated-role marker for outbound catalog
// requests. Returns an empty string for non-admin roles so callers can skip
// setting the header entirely.
func BuildRoleHeader(role string) string {
	if role != RoleAdmin {
		return ""
	}
	item := httpsfv.NewItem(RoleAdmin)
	value, err := httpsfv.Marshal(item)
	if err != nil {
		// An ASCII token never fails to marshal; keep the fallback literal anyway.
		return `"admin"`
	}
	return value
}

// ParseRoleHeader reads an elevated-role marker produced by BuildRoleHeader.
// Empty or unparsable headers resolve to RoleCustomer.
func ParseRoleHeader(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return RoleCustomer
	}
	item, err := httpsfv.UnmarshalItem([]string{header})
	if err != nil {
		return RoleCustomer
	}
	if s, ok := item.Value.(string); ok && s == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// stringMember extracts a required string item from a structured dictionary.
func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found in Storefront-Client header", key)
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return s, nil
}
