// Package store provides the SQLite run journal.
//
// The journal is append-only:
//   - Runs: one row per protocol run (id, protocol, network, seed, actors, status)
//   - Invocations: every backend call a run made, with its classified outcome
//
// # Ordering
//
// Invocations are ordered by seq, the run's logical call counter, never by
// timestamps. Queries use ORDER BY seq ASC, id ASC COLLATE BINARY so
// listings are identical across reads.
//
// # Identity
//
// Run ids are UUIDv7, so listing runs by id lists them by start time.
// Invocation ids are content-addressed via payload.InvocationID; writing the
// same invocation twice is a no-op.
//
// # Connection
//
// Pragmas travel in the DSN so the driver applies them to every connection:
// WAL, synchronous=NORMAL, a 5 second busy timeout and foreign keys. The
// schema version lives in user_version; Open refuses a journal from a newer
// drill rather than writing rows it may not understand.
package store
