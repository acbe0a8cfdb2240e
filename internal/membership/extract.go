package membership

import (
	"strings"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// Classified is an address observed in an event together with its role
type Classified struct {
	Address string
	Role    Role
}

// ExtractAddresses returns every string value that is a valid address,
// deduplicated in first-occurrence order.
func ExtractAddresses(values domain.ReturnValues) []string {
	seen := make(map[string]struct{})
	var addresses []string
	for _, arg := range values {
		s, ok := arg.Value.(string)
		if !ok || !IsAddress(s) {
			continue
		}
		key := Canonical(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, s)
	}
	return addresses
}

// Extract classifies every address in values and returns the author candidate:
// the lowercased MEMBER address, the last one in scan order when there are several.
// author is empty when no MEMBER address exists.
func Extract(values domain.ReturnValues) (classified []Classified, author string) {
	for _, address := range ExtractAddresses(values) {
		role := Classify(values, address)
		if role == RoleMember {
			author = strings.ToLower(address)
		}
		classified = append(classified, Classified{Address: address, Role: role})
	}
	return classified, author
}
