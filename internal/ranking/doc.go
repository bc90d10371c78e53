// Package ranking scores every candidate document against every query and
// turns the scores into per-query ranked lists.
//
// Work is split into (query, document) units run on a bounded worker pool.
// Each query owns an accumulator with one slot per candidate; the unit that
// fills the last slot finalizes the query. Finished queries are released
// in input order, so output does not depend on scheduling.
//
// Failures local to one pair (a missing document, a scoring error) skip
// that pair and are logged. Only cancellation and emit errors stop a run.
package ranking
