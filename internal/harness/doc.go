// Package harness runs sync scenarios end to end against in-memory
// providers.
//
// A scenario is a YAML file holding a complete configuration, seed records
// for each provider, an optional list of injected provider failures and a
// set of assertions. The harness builds the configuration, replaces every
// provider with a memory provider that records its calls, runs the rule
// with a fixed run id and evaluates the assertions against the outcome.
//
// Runs are deterministic when the scenario uses a single worker, which
// makes the call trace and the final provider state suitable for golden
// file comparison:
//
//	s, err := harness.LoadScenario("testdata/scenarios/create_and_link.yaml")
//	...
//	harness.RunWithGolden(t, s, "testdata/scenarios/golden")
//
// Golden files live in a golden directory next to the scenarios and are
// refreshed with
//
//	go test ./internal/harness -update
//
// or with "synctool scenario test --update".
package harness
