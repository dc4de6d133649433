// Package download streams an HTTP response body into a staging file while
// enforcing a size ceiling and computing MD5 and SHA-256 digests in the
// same pass.
//
// # Single Transfer
//
// [Stream] moves through Creating, Streaming and Finalizing and ends in
// either Verified or Aborted:
//
//	outcome, staging, err := download.Stream(ctx, resp.Body, resp.ContentLength,
//		download.TempTarget(), logger,
//		download.WithMaxSize(10<<20),
//		download.WithSHA256(expected),
//	)
//
// On abort the staging file has already been closed and removed and err is
// a [*Error] carrying the [Reason]. On success the caller owns the returned
// [*Staging] and must call Release or Discard.
package download
