// Package observability records what happens to tasks and accounts as an
// append-only JSON Lines event log, derives metrics from that log, and
// evaluates deadline alerts over the live task collection.
package observability
