package membership

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// Role is the function an address plays within a single event payload
type Role string

const (
	RoleDelegate  Role = "DELEGATE"
	RoleMember    Role = "MEMBER"
	RoleApplicant Role = "APPLICANT"
	RoleAddress   Role = "ADDRESS"
)

// fieldRole maps a payload field name to a role. Consulted in order; fields not
// listed classify as RoleAddress.
type fieldRole struct {
	field string
	role  Role
}

var roleTable = []fieldRole{
	{field: domain.FIELD_DELEGATE_KEY, role: RoleDelegate},
	{field: domain.FIELD_MEMBER_ADDRESS, role: RoleMember},
	{field: domain.FIELD_APPLICANT, role: RoleApplicant},
}

func roleForField(field string) Role {
	for _, fr := range roleTable {
		if fr.field == field {
			return fr.role
		}
	}
	return RoleAddress
}

// IsAddress reports whether s is a syntactically valid 0x-prefixed chain address
func IsAddress(s string) bool {
	return (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && common.IsHexAddress(s)
}

// Canonical returns the checksummed form of an address
func Canonical(address string) string {
	return common.HexToAddress(address).Hex()
}

// Classify determines the role of address within values. The first field, in
// declaration order, whose value is the address decides the role. The empty
// role is returned when the address is not present.
func Classify(values domain.ReturnValues, address string) Role {
	if !IsAddress(address) {
		return ""
	}
	target := Canonical(address)
	for _, arg := range values {
		s, ok := arg.Value.(string)
		if !ok || !IsAddress(s) {
			continue
		}
		if Canonical(s) == target {
			return roleForField(arg.Name)
		}
	}
	return ""
}
