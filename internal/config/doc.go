// Package config loads runtime configuration.
//
// Load layers an optional YAML file over built-in defaults, then
// applies environment overrides, then validates. Components receive
// their settings at construction and never read the environment
// themselves.
package config
