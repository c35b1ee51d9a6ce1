// Package logs reads per-job log files for the CLI and the HTTP API.
//
// Tail returns the last lines of a file together with the byte offset of its
// end; passing that offset back with Follow set waits for lines appended after
// it. Memory stays bounded by the requested line count.
package logs
