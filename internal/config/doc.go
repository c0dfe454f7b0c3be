// Package config loads the killfeed configuration from
// ~/.config/killfeed/config.toml. A missing file is not an error: every
// field has a usable default so the client starts against a local tracker
// with no setup.
package config
