// Package store provides SQLite-backed storage for translated records.
//
// Each stored row keeps what is needed to read the record back exactly:
//   - data: the canonical JSON dump of the record (RFC 8785, NFC)
//   - meta: the provenance of every field, in __meta_metadata__ form
//   - errors: the continuable errors of the translation
//   - master_format, models and fingerprint: where the record came from
//     and the rule table it was translated with
//
// # Critical Patterns
//
// Logical Ordering
//   - Rows carry a store-assigned seq INTEGER; ordering never uses timestamps
//
// Deterministic Query Results
//   - All queries MUST include: ORDER BY seq ASC, id COLLATE BINARY ASC
//   - Ensures identical results regardless of insertion timing
//
// Identifiers
//   - Record ids are UUIDv7 strings unless the caller supplies a generator
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
