// Package config loads and validates the gateway configuration.
//
// Configuration is YAML with ${VAR} and ${VAR:-default} environment
// substitution. Values missing from the file fall back to DefaultConfig,
// which describes the stock six-service deployment. Services converts the
// validated service list into ServiceDescriptors used by the rest of the
// gateway.
package config
