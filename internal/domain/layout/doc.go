// Package layout implements the domain layer for BIDS path resolution.
//
// This package follows the same rules as the other domain packages:
//   - Contains only pure Go code with standard library imports (no external dependencies)
//   - Defines entity types (Entity, Query, Pattern) and value objects (Constraint, Entities)
//   - Implements domain logic (regex extraction, constraint matching, path generation and parsing)
//   - Has no knowledge of infrastructure concerns (file I/O, JSON/YAML decoding, databases)
//
// # Core Types
//
// Entity is a named, regex-extractable key-value component of a filename,
// such as the "desc" in "desc-preproc". Its pattern has exactly one capture
// group and an optional integer dtype.
//
// Registry holds entities in declaration order and rejects duplicates.
//
// Query is a named set of per-field constraints used to select derivative or
// transform files. A Constraint is Absent (field must be missing), Equal
// (field must equal a literal) or OneOf (field must equal an alternative,
// optionally also allowing absence).
//
// Catalog groups queries under the "derivatives" and "transforms" namespaces.
//
// Pattern is a path template compiled into a small grammar of literals,
// placeholders ("{name}", "{name<a|b>|default}") and optional groups ("[...]").
// Patterns holds templates in declared order; both Generate and Parse use the
// first pattern that fits.
//
// # Concurrency
//
// Every type here is immutable once construction is done. Registry.Register
// and Catalog.Add are only called while loading a specification document;
// afterwards Generate, Parse and Matches can be called from any goroutine
// without locking.
package layout
