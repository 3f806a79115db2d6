package config

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.uber.org/multierr"

	"github.com/Thox33/sync-tool/internal/provider"
)

// Validate runs the checks that need live providers: every configured
// provider is constructed and initialized, every rule endpoint is offered
// to its provider, and all providers are torn down again. All problems are
// reported together.
func (c *Configuration) Validate(ctx context.Context, reg *provider.Registry) error {
	var errs error
	live := make(map[string]provider.Provider, len(c.Providers))
	defer func() {
		for name, p := range live {
			if err := p.Teardown(ctx); err != nil {
				slog.Warn("provider teardown failed after validation", "provider", name, "error", err)
			}
		}
	}()

	for _, name := range sortedKeys(c.Providers) {
		pc := c.Providers[name]
		p, err := reg.New(pc.Kind, pc.Name, pc.Options)
		if err != nil {
			errs = multierr.Append(errs, &Error{Code: ErrCodeProvider, Path: "providers." + name, Message: err.Error()})
			continue
		}
		if err := p.Init(ctx); err != nil {
			errs = multierr.Append(errs, &Error{Code: ErrCodeProvider, Path: "providers." + name, Message: err.Error()})
			continue
		}
		live[name] = p
	}

	for _, sname := range c.syncOrder {
		s := c.Syncs[sname]
		for _, rname := range s.ruleOrder {
			rule := s.Rules[rname]
			if err := c.validateEndpoint(live, rule, "source", rule.Source); err != nil {
				errs = multierr.Append(errs, err)
			}
			if err := c.validateEndpoint(live, rule, "destination", rule.Destination); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (c *Configuration) validateEndpoint(live map[string]provider.Provider, rule *Rule, side string, ep Endpoint) error {
	path := fmt.Sprintf("syncs.%s.rules.%s.%s", rule.Sync, rule.Name, side)
	p, ok := live[ep.Provider]
	if !ok {
		return &Error{Code: ErrCodeProviderCheck, Path: path, Message: fmt.Sprintf("could not resolve provider %q", ep.Provider)}
	}
	pep, err := c.ProviderEndpoint(ep)
	if err != nil {
		return prefixPath(err, path)
	}
	if side == "source" {
		err = p.ValidateSource(pep)
	} else {
		err = p.ValidateDestination(pep)
	}
	if err != nil {
		return &Error{Code: ErrCodeProviderCheck, Path: path, Message: err.Error()}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
