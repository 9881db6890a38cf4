// Package config provides Postgres connection configurations for tests,
// one constructor per supported database adapter.
package config
