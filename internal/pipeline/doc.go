// Package pipeline chains download, decompression and extraction.
//
// Retrieve runs the three stages of the archive package and the downloader
// against a single progress row; the row's subtask moves through
// "downloading", "un<format>-ing" and "untar-ing". A failure is returned as a
// *StageError naming the stage, with the cause available through errors.Is
// and errors.As.
//
// Nothing is cleaned up on failure. Callers that want a fresh start remove
// the destination before retrying.
package pipeline
