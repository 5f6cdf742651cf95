// Package config loads the daemon's JSON configuration and applies
// defaults for fields the operator leaves out.
package config
