// Package domain defines the core value types for the MAILBLAST campaign
// service.
//
// Types in this package are pure value objects with no behavior beyond small
// helpers. They are the shared language between the transport, the campaign
// engine, and the HTTP handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
