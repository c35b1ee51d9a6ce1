// Package ffmpeg runs the ffmpeg and ffprobe command lines the pipeline needs:
// silent narration fallback, audio chunk concatenation, duration probes and
// the final render. Argument construction is kept in pure functions so the
// stages can be tested against a fake Runner.
package ffmpeg
