// Package campaign implements the campaign execution core: the registry of
// live progress snapshots and control flags, the single-session send engine,
// the progress publisher, and the orchestrating service.
//
// One goroutine runs per campaign; the Registry is the only shared mutable
// state. Snapshot fields have a single writer (the owning engine) and any
// number of readers; control flags may be written by any controller.
//
// The service layer should never import from api/; handlers depend on this
// package, not the other way around.
package campaign
