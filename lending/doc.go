// Package lending contains the core domain model of the library lending
// system: the LoanRecord entity with its lifecycle state machine, the
// contracts consumed from the catalog and member stores, the typed error
// taxonomy, and the dependency-free observability interfaces shared by all
// engine implementations.
//
// The package is pure domain logic with no storage concerns. Storage engines
// live in the sub-packages: postgresengine provides the transactional
// Postgres implementation, memoryengine an in-process implementation with
// per-book locking for tests, demos, and embedding.
package lending
