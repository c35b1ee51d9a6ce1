// Package main hosts the mediafactory CLI entrypoint and command graph.
//
// Commands talk to the shared job database directly, so submitting, listing,
// cancelling and retrying work whether or not a daemon is running. The
// daemon and worker commands start the processing side in the foreground.
package main
