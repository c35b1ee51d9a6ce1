// Package drapto integrates the Drapto Go library so the compose stage can
// optionally re-encode the rendered MP4 into an AV1 MKV.
//
// It exposes an Encoder interface, a Library implementation that calls
// Drapto directly, and a reporter adapter that translates Drapto's Reporter
// callbacks into Progress values and log lines. Tests swap in fakes to avoid
// executing the real encoder.
package drapto
