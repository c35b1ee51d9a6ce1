// Package compose renders the finished video. Section timings are derived
// from word counts scaled to the narration length; the same timings drive the
// SRT subtitle track and the ffmpeg filter graph that concatenates the
// section visuals under the narration. An optional AV1 pass through the
// Drapto library replaces the H.264 render as the primary output.
package compose
