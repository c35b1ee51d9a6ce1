// Package assets implements the visual sourcing stage. Every script section
// gets one visual: a Pexels stock clip matched against the section's b-roll
// description when an API key is configured, otherwise a rendered slide.
// The stage records its choices in manifest.json, which compose reads.
package assets
