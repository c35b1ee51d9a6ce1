// Package services defines shared utilities consumed by the pipeline stages,
// the worker and the external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, attempts, worker names
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so the worker can decide
//     between retrying a stage and failing the job.
//
// Collaborator clients live in subpackages (llm, elevenlabs, pexels, ffmpeg,
// drapto, youtube).
package services
