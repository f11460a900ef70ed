// Package store provides durable persistence for the step tracker with
// abstraction for testing. The real implementation is SQLite-backed; the
// fake allows testing without a database file.
//
// The daily ledger keeps one row per calendar day. The stored value is
// the negated day-start counter, so that stored + totalSinceBoot yields
// the steps walked since local midnight, the sign convention the
// logic.Gateway contract exposes through GetSteps.
package store

import "github.com/sweeney/step-tracker/internal/logic"

// Compile-time checks that both implementations satisfy the gateway
// contract the core depends on.
var (
	_ logic.Gateway = (*SQLite)(nil)
	_ logic.Gateway = (*Fake)(nil)
)
