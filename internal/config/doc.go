// Package config loads, normalizes, and validates mediafactory configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STORAGE_PATH, ELEVENLABS_API_KEY and MEDIAFACTORY_DATABASE_DSN. The Config
// type centralizes every knob the daemon, the workers and the CLI need, from
// the database backend to retry policy and collaborator credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
