package roles

import (
	"fmt"
	"slices"
	"time"
)

// Step-up factors requested from the verification service
const (
	FactorMFA           = "mfa"
	FactorDeviceBinding = "device_binding"
)

// Default lifetimes for grants that carry no role. They match the least
// privileged tier so an unrecognised scope never outlives a real one.
const (
	DefaultAccessTokenTTL        = 900 * time.Second
	DefaultRefreshRequiredBefore = 600 * time.Second
)

// Policy is the effective token policy for a set of roles.
type Policy struct {
	Role                  Role // empty for the default policy
	AccessTokenTTL        time.Duration
	RefreshRequiredBefore time.Duration
	RequiresStepUp        bool
	RequiresDeviceBinding bool
	AuditLevel            AuditLevel
}

// DefaultPolicy applies when no role was granted.
func DefaultPolicy() Policy {
	return Policy{
		AccessTokenTTL:        DefaultAccessTokenTTL,
		RefreshRequiredBefore: DefaultRefreshRequiredBefore,
		AuditLevel:            AuditLevelBasic,
	}
}

// PolicyFor resolves the policy of the most privileged role in rs.
func PolicyFor(rs []Role) Policy {
	top, ok := Highest(rs)
	if !ok {
		return DefaultPolicy()
	}
	d, ok := catalog[top]
	if !ok {
		return DefaultPolicy()
	}
	return Policy{
		Role:                  d.Role,
		AccessTokenTTL:        d.AccessTokenTTL,
		RefreshRequiredBefore: d.RefreshRequiredBefore,
		RequiresStepUp:        d.RequiresStepUp,
		RequiresDeviceBinding: d.RequiresDeviceBinding,
		AuditLevel:            d.AuditLevel,
	}
}

// StepUpRequirements lists the factors the verification service must collect.
func (p Policy) StepUpRequirements() []string {
	var req []string
	if p.RequiresStepUp {
		req = append(req, FactorMFA)
	}
	if p.RequiresDeviceBinding {
		req = append(req, FactorDeviceBinding)
	}
	return req
}

// Extractor maps granted scopes onto roles. A scope confers a role when it
// names the role directly or is bound to it.
type Extractor struct {
	bindings map[string]Role
}

// NewExtractor validates scope bindings of the form scope -> role name.
func NewExtractor(bindings map[string]string) (*Extractor, error) {
	e := &Extractor{bindings: make(map[string]Role, len(bindings))}
	for scope, name := range bindings {
		r, ok := Parse(name)
		if !ok {
			return nil, fmt.Errorf("scope %q bound to unknown role %q", scope, name)
		}
		e.bindings[scope] = r
	}
	return e, nil
}

// ExtractRoles returns the roles conferred by scopes, most privileged first.
func (e *Extractor) ExtractRoles(scopes []string) []Role {
	var out []Role
	for _, s := range scopes {
		if r, ok := Parse(s); ok && string(r) == s {
			out = append(out, r)
			continue
		}
		if e != nil {
			if r, ok := e.bindings[s]; ok {
				out = append(out, r)
			}
		}
	}
	return Sort(out)
}

// BoundScopes lists scopes that confer a role through a binding, sorted.
func (e *Extractor) BoundScopes() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.bindings))
	for s := range e.bindings {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
