package context

import "strings"

// Policy applies the allow and deny lists of a build.
type Policy struct {
	allowDomains  map[string]struct{}
	denyDomains   map[string]struct{}
	allowEntities map[string]struct{}
	denyEntities  map[string]struct{}
}

// NewPolicy builds the policy for the given options.
func NewPolicy(opts Options) *Policy {
	return &Policy{
		allowDomains:  toSet(cleanList(opts.AllowlistDomains)),
		denyDomains:   toSet(cleanList(opts.DenylistDomains)),
		allowEntities: toSet(cleanList(opts.AllowlistEntities)),
		denyEntities:  toSet(cleanList(opts.DenylistEntities)),
	}
}

// Allowed reports whether the entity may appear in the context.
// Deny lists are checked first. When both allow lists are set, matching
// either one is enough. Matching ignores case.
func (p *Policy) Allowed(entityID string) bool {
	entityID = strings.ToLower(strings.TrimSpace(entityID))
	domain := DomainOf(entityID)
	if _, denied := p.denyEntities[entityID]; denied {
		return false
	}
	if _, denied := p.denyDomains[domain]; denied {
		return false
	}

	if len(p.allowDomains) == 0 && len(p.allowEntities) == 0 {
		return true
	}
	if _, ok := p.allowEntities[entityID]; ok {
		return true
	}
	if _, ok := p.allowDomains[domain]; ok {
		return true
	}
	return false
}
