// Package ir provides the intermediate representation shared by every layer of
// bibform: the sealed value family, parsed configuration records, compiled
// rule-table types and the prepared (tag-indexed) input record.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal, so it stays the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float values anywhere - numbers are int64
//   - JSON null never survives into a translated record (see StripNulls)
//   - JSON tags use snake_case
package ir
