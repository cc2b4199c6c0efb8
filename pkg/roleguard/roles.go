package roleguard

import (
	"strings"

	"github.com/pkg/errors"
)

// AccountRole is a role an account plays within a creation instruction
type AccountRole uint8

const (
	RolePayer AccountRole = iota
	RoleAuthority
	RoleTarget
	RolePlainSigner
	RoleProgramDerived

	numRoles
)

var roleNames = [numRoles]string{
	RolePayer:          "payer",
	RoleAuthority:      "authority",
	RoleTarget:         "target",
	RolePlainSigner:    "signer",
	RoleProgramDerived: "pda",
}

var ErrUnknownRole = errors.New("unknown account role")

func (r AccountRole) String() string {
	if r >= numRoles {
		return "unknown"
	}
	return roleNames[r]
}

// ParseAccountRole parses the names produced by AccountRole.String
func ParseAccountRole(value string) (AccountRole, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range roleNames {
		if name == value {
			return AccountRole(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownRole, "%q", value)
}

// RoleSet is a set of AccountRole values. The zero value is the empty set.
type RoleSet uint8

func NewRoleSet(roles ...AccountRole) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

func (s RoleSet) Has(r AccountRole) bool {
	if r >= numRoles {
		return false
	}
	return s&(1<<r) != 0
}

func (s RoleSet) With(r AccountRole) RoleSet {
	if r >= numRoles {
		return s
	}
	return s | (1 << r)
}

func (s RoleSet) Without(r AccountRole) RoleSet {
	if r >= numRoles {
		return s
	}
	return s &^ (1 << r)
}

func (s RoleSet) IsEmpty() bool {
	return s == 0
}

// Slice returns the roles in the set ordered by their enum value
func (s RoleSet) Slice() []AccountRole {
	var roles []AccountRole
	for r := AccountRole(0); r < numRoles; r++ {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// String renders the set as pipe separated role names, eg. "payer|pda"
func (s RoleSet) String() string {
	roles := s.Slice()
	if len(roles) == 0 {
		return "none"
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, "|")
}
