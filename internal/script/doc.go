// Package script implements the first pipeline stage: it asks the configured
// LLM for a structured video script and records it as script.json plus a
// plain narration transcript in script.txt.
//
// Replies are validated against an embedded JSON schema before anything is
// written. A model that declines the topic (content_not_allowed) fails the job
// permanently; malformed replies are treated as transient because a second
// sample usually succeeds.
package script
