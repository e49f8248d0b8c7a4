// Package config loads, normalizes, and validates Convify configuration data.
//
// It supplies defaults matching the service's admission and retention policy,
// expands user paths (including tilde shortcuts), reads TOML files, and honours
// environment fallbacks such as YOUTUBE_API_KEY. Duration helpers convert the
// integer knobs into time.Duration values for the executor and sweeper.
package config
