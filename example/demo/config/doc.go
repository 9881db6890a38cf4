// Package config provides database and observability configuration
// for the demo commands.
package config
