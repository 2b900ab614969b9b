// Package store persists compressed entries in SQLite.
//
// # Data Model
//
// One row per entry in the entries table: the caller-chosen identifier, the
// zstd-compressed text, an optional expiry computed by the database clock,
// an optional burn-after-reading flag and an optional owner reference. The
// single-row uids table holds a counter used to mint owner references.
//
// # Lifecycle
//
// Entries are never updated in place. An expired entry is deleted by the
// first read that notices it; a burn-after-reading entry is deleted by the
// read that returns it. Both cases report common.ErrorNotFound to every later
// reader.
//
// # Concurrency
//
// A Store owns one database connection guarded by a mutex (see dbx.Conn).
// The lookup and the delete that retires an expired or burned entry happen
// under a single hold of that mutex, so two concurrent readers can never both
// receive a burn-after-reading entry. Compression runs outside the mutex on a
// blocking.Pool.
package store
