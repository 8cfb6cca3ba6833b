// Package config loads, validates, and provides access to the TOML
// configuration for the upscaling daemon and CLI. Values omitted from the
// file fall back to built-in defaults, and a small set of environment
// variables override file values for containerized deployments.
package config
