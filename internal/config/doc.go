// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file and environment variables. The
// resulting Config is constructed once at startup and passed explicitly to
// every component that needs it.
package config
