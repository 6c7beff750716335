// Package config loads and validates murmur's TOML configuration.
package config
