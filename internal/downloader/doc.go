// Package downloader fetches source archives into the local cache.
//
// The cache is keyed by file name only: the last path segment of the URL.
// A file that already exists under that name is returned without touching
// the network, with no freshness or integrity check.
//
// # Usage
//
//	res, err := downloader.Download(ctx, handle, url, cacheRoot, downloader.Options{})
//	// res.Path, res.Cached
//
// # Progress
//
// The body is read in ChunkSize pieces. After every piece the reporter gets
// bytesSoFar/contentLength. The value is not clamped, so a server that lies
// about the length can push it past 1.0. A response without Content-Length
// fails with ErrContentLength before anything is written.
//
// # Mirror
//
// Options.Mirror names a gocloud.dev bucket (mem://, file://, s3://, gs://).
// A hit is copied into the cache instead of hitting the origin; after an
// origin download the file is uploaded to the mirror. Mirror failures are
// logged and never fail the download.
//
// # Atomicity
//
// Bodies stream into a "<name>.*.part" temp file in the cache directory and
// are renamed into place only when complete, so an interrupted transfer never
// leaves a file that a later run would take for a cache hit.
package downloader
