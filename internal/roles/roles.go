package roles

import (
	"slices"
	"strings"
	"time"
)

// Role is a privilege tier. Lower levels are more privileged.
type Role string

const (
	DiamondSAO  Role = "diamond_sao"
	EmeraldSAO  Role = "emerald_sao"
	SapphireSAO Role = "sapphire_sao"
	OpalASO     Role = "opal_aso"
	OnyxOS      Role = "onyx_os"
)

// AuditLevel controls how much detail is recorded for events involving a role.
type AuditLevel string

const (
	AuditLevelComprehensive AuditLevel = "comprehensive"
	AuditLevelStandard      AuditLevel = "standard"
	AuditLevelBasic         AuditLevel = "basic"
)

// Definition describes a single tier in the catalog.
type Definition struct {
	Role                  Role
	Level                 int
	Permissions           []string
	AccessTokenTTL        time.Duration
	RefreshRequiredBefore time.Duration
	RequiresStepUp        bool
	RequiresDeviceBinding bool
	AuditLevel            AuditLevel
}

var catalog = map[Role]Definition{
	DiamondSAO: {
		Role:                  DiamondSAO,
		Level:                 1,
		Permissions:           []string{"admin:full", "system:modify", "agents:manage", "secrets:manage"},
		AccessTokenTTL:        3300 * time.Second,
		RefreshRequiredBefore: 3000 * time.Second,
		RequiresStepUp:        true,
		RequiresDeviceBinding: true,
		AuditLevel:            AuditLevelComprehensive,
	},
	EmeraldSAO: {
		Role:                  EmeraldSAO,
		Level:                 2,
		Permissions:           []string{"admin:read", "system:read", "agents:read", "users:manage"},
		AccessTokenTTL:        2700 * time.Second,
		RefreshRequiredBefore: 2400 * time.Second,
		RequiresStepUp:        true,
		AuditLevel:            AuditLevelStandard,
	},
	SapphireSAO: {
		Role:                  SapphireSAO,
		Level:                 3,
		Permissions:           []string{"org:admin", "users:manage", "data:read"},
		AccessTokenTTL:        1800 * time.Second,
		RefreshRequiredBefore: 1500 * time.Second,
		AuditLevel:            AuditLevelStandard,
	},
	OpalASO: {
		Role:                  OpalASO,
		Level:                 4,
		Permissions:           []string{"tenant:admin", "users:read", "data:read"},
		AccessTokenTTL:        1200 * time.Second,
		RefreshRequiredBefore: 900 * time.Second,
		AuditLevel:            AuditLevelBasic,
	},
	OnyxOS: {
		Role:                  OnyxOS,
		Level:                 5,
		Permissions:           []string{"user:read", "profile:manage"},
		AccessTokenTTL:        900 * time.Second,
		RefreshRequiredBefore: 600 * time.Second,
		AuditLevel:            AuditLevelBasic,
	},
}

// All returns every known role, most privileged first.
func All() []Role {
	return []Role{DiamondSAO, EmeraldSAO, SapphireSAO, OpalASO, OnyxOS}
}

// Parse returns the role with the given name.
func Parse(name string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	_, ok := catalog[r]
	return r, ok
}

// Lookup returns the catalog definition for r.
func Lookup(r Role) (Definition, bool) {
	d, ok := catalog[r]
	return d, ok
}

// Level returns the privilege level of r, or 0 for unknown roles.
func (r Role) Level() int {
	return catalog[r].Level
}

// Valid reports whether r is a catalog role.
func (r Role) Valid() bool {
	_, ok := catalog[r]
	return ok
}

func (r Role) String() string { return string(r) }

// Compare orders roles by privilege: negative when a is more privileged than b,
// zero when equal, positive otherwise. Unknown roles sort after every known role.
func Compare(a, b Role) int {
	la, lb := rank(a), rank(b)
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

func rank(r Role) int {
	if d, ok := catalog[r]; ok {
		return d.Level
	}
	return len(catalog) + 1
}

// Highest returns the most privileged role in rs.
func Highest(rs []Role) (Role, bool) {
	if len(rs) == 0 {
		return "", false
	}
	return slices.MinFunc(rs, Compare), true
}

// Sort orders rs most privileged first, dropping duplicates.
func Sort(rs []Role) []Role {
	out := slices.Clone(rs)
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}

// Strings converts roles to their wire form.
func Strings(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// FromStrings parses names, skipping any that are not catalog roles.
func FromStrings(names []string) []Role {
	var out []Role
	for _, n := range names {
		if r, ok := Parse(n); ok {
			out = append(out, r)
		}
	}
	return Sort(out)
}

// Intersect returns the roles present in both a and b.
func Intersect(a, b []Role) []Role {
	var out []Role
	for _, r := range a {
		if slices.Contains(b, r) {
			out = append(out, r)
		}
	}
	return Sort(out)
}
