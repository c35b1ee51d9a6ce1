// Package voice implements the narration stage. It speaks the script through
// ElevenLabs in chunks of at most 5000 characters and joins the chunks with
// ffmpeg. Without an ElevenLabs key it produces a silent track sized from the
// word count so later stages still have audio to time against.
package voice
