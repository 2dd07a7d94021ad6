// Package http provides the HTTP client used to fetch source archives.
//
// This package handles:
//   - Plain GET with the raw body (transparent gzip is disabled, so the
//     Content-Length header matches the bytes the caller reads)
//   - Status classification into *StatusError
//   - Optional retry with exponential backoff (off by default)
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Get(ctx, url)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//	// resp.ContentLength is -1 when unknown
package http
