// Package config loads and checks sync-tool configuration.
//
// A configuration declares internal types, providers with their mappings,
// and named syncs made of rules. It is written in CUE (JSON and YAML are
// accepted too) and unified with an embedded schema before it is decoded,
// so shape errors carry file positions.
package config

import (
	"fmt"
	"slices"

	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/schema"
)

// Mode selects the update direction of a rule.
type Mode string

const (
	// ModeSingle pushes source values to the destination only.
	ModeSingle Mode = "single"
	// ModeBoth lets the more recently modified side win.
	ModeBoth Mode = "both"
)

// Configuration is an immutable, checked configuration.
type Configuration struct {
	Types     *schema.Registry
	Providers map[string]*ProviderConfig
	Syncs     map[string]*Sync

	syncOrder []string
}

// ProviderConfig is one configured provider instance.
type ProviderConfig struct {
	Name     string
	Kind     string
	Options  map[string]any
	Mappings map[string]mapping.Spec
}

// Sync is a named group of rules.
type Sync struct {
	Name  string
	Rules map[string]*Rule

	ruleOrder []string
}

// RuleNames returns rule names in declaration order.
func (s *Sync) RuleNames() []string { return slices.Clone(s.ruleOrder) }

// Endpoint is one side of a rule.
type Endpoint struct {
	Provider string
	Mapping  string
	Query    provider.Query
}

// Rule pairs a source and a destination for one internal type.
type Rule struct {
	Sync         string
	Name         string
	Type         string
	Mode         Mode
	Source       Endpoint
	Destination  Endpoint
	Transformers []mapping.Transformer
}

// ID returns "sync/rule".
func (r *Rule) ID() string { return r.Sync + "/" + r.Name }

// SyncNames returns sync names in declaration order.
func (c *Configuration) SyncNames() []string { return slices.Clone(c.syncOrder) }

// Rule looks up a rule by sync and rule name.
func (c *Configuration) Rule(syncName, ruleName string) (*Rule, error) {
	s, ok := c.Syncs[syncName]
	if !ok {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("sync %q not found", syncName)}
	}
	r, ok := s.Rules[ruleName]
	if !ok {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("rule %q not found in sync %q", ruleName, syncName)}
	}
	return r, nil
}

// Type returns the internal type of a rule.
func (c *Configuration) Type(r *Rule) (*schema.Type, error) {
	t, ok := c.Types.Get(r.Type)
	if !ok {
		return nil, &Error{Code: ErrCodeType, Path: r.ID(), Message: fmt.Sprintf("internal type %q not found", r.Type)}
	}
	return t, nil
}

// Provider returns the configuration of the endpoint's provider.
func (c *Configuration) Provider(ep Endpoint) (*ProviderConfig, error) {
	p, ok := c.Providers[ep.Provider]
	if !ok {
		return nil, &Error{Code: ErrCodeProvider, Message: fmt.Sprintf("provider %q not found", ep.Provider)}
	}
	return p, nil
}

// Mapping returns the mapping spec used by an endpoint.
func (c *Configuration) Mapping(ep Endpoint) (mapping.Spec, error) {
	p, err := c.Provider(ep)
	if err != nil {
		return mapping.Spec{}, err
	}
	spec, ok := p.Mappings[ep.Mapping]
	if !ok {
		return mapping.Spec{}, &Error{Code: ErrCodeMapping, Message: fmt.Sprintf("mapping %q not found in provider %q", ep.Mapping, ep.Provider)}
	}
	return spec, nil
}

// ProviderEndpoint describes an endpoint in provider terms.
func (c *Configuration) ProviderEndpoint(ep Endpoint) (provider.Endpoint, error) {
	spec, err := c.Mapping(ep)
	if err != nil {
		return provider.Endpoint{}, err
	}
	return provider.Endpoint{
		Provider: ep.Provider,
		ItemType: spec.Type,
		Mapping:  ep.Mapping,
		Query:    ep.Query,
	}, nil
}
