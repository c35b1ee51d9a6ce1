// Package publish implements the optional final stage that uploads the
// composed video and its thumbnail to YouTube.
//
// Uploads are not idempotent, so every attempt goes through the publish
// ledger: the first attempt reserves an in-flight entry and later attempts
// reuse a recorded video ID instead of uploading again. An entry left
// in flight by a crashed attempt fails the job for manual review rather than
// risk a duplicate upload. Without credentials the stage records
// pending_upload and succeeds, leaving the files ready for a manual upload.
package publish
