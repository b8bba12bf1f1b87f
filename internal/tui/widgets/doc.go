// Package widgets contains dumb render primitives.
//
// Allowed here:
// - stateless drawing/composition helpers (grids, bars, popup chrome)
//
// Not allowed here:
// - key handling, app state transitions, or tab policy
package widgets
