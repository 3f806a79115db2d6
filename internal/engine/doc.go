// Package engine runs sync rules.
//
// A Controller owns one rule. Init resolves the rule's internal type and
// mappings and initializes the source and destination providers; Sync
// reads the source records, turns each into an Item and drives the items
// through their lifecycle until every one is synced or failed:
//
//	PREPARE -> NEW -> (create) -> SHOULD_FETCH
//	PREPARE -> SHOULD_FETCH -> (fetch) -> FETCHED -> (compare) -> SYNCED | NEEDS_UPDATE
//	NEEDS_UPDATE -> (update) -> SYNCED
//
// Any step can end an item FAILED. Item failures are isolated: the run
// continues with the other items and reports them at the end.
//
// Dispatch:
// A single dispatcher goroutine owns the FIFO work queue, the step quota
// and the report. It takes up to Workers items per round, runs one step
// for each on a bounded errgroup, then records the outcomes and re-enqueues
// the items that are not terminal. Steps never touch shared state.
//
// Run-level failures (configuration, provider initialization, unreadable or
// invalid source data, an exceeded step limit, cancellation) abort the run
// with a RuntimeError. Providers are torn down in every case.
package engine
