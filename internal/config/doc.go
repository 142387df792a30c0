// Package config loads the zkpong runtime configuration from a JSON, YAML or
// TOML file and fills in defaults for every section the file leaves out.
package config
