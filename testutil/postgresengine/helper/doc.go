// Package helper provides fixtures and observability test doubles for the
// engine test suites.
package helper
