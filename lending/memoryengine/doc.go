// Package memoryengine provides an in-process implementation of the lending engine.
//
// It keeps the catalog stock, the member registry, and the loan ledger in
// memory and guards each book's stock critical section with a per-book mutex,
// so concurrent lends against the same title serialize while operations on
// different titles run in parallel. The dual-write (stock + ledger) happens
// entirely inside the critical section and is compensated on failure, giving
// the same all-or-nothing guarantee as the Postgres engine's transactions.
//
// The memory engine is intended for tests, demos, and embedding in tools that
// do not need durability. It exposes the same operation set as the Postgres
// engine plus seeding helpers for catalog and member data.
package memoryengine
