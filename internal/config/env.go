// Package config provides environment configuration helpers for
// crosstalk commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Get returns the env var value, or def when unset or empty.
func Get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetInt returns the env var parsed as int, or def when unset or invalid.
func GetInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetDuration returns the env var parsed as a duration, or def when
// unset or invalid.
func GetDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Require returns the env var value or exits with a usage message.
// For variables a binary cannot run without.
func Require(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}
