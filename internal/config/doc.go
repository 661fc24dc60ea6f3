// Package config loads process settings from defaults, an optional YAML file
// and the environment, and reads the initial targets file.
package config
