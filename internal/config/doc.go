// Package config loads the YAML configuration of caresearch.
//
// Values may reference the environment as ${VAR} or ${VAR:-default}; the
// references are expanded before parsing. Missing fields get defaults and
// the result is validated, so a Config returned by Load is ready to use.
package config
