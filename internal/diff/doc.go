// Package diff compares two crawl snapshots.
//
// Compare is a pure function: it reads both snapshots, never modifies them,
// and returns the same ChangeSet for the same inputs. Pages are matched by
// canonical URL. Every category lists its entries in snapshot order, pages
// from the current snapshot first where both are involved, so reports built
// from a ChangeSet are stable across runs.
//
// A snapshot containing the same URL twice is malformed; Compare does not
// try to repair it and the result for such input is unspecified.
package diff
