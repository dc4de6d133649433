// Package throttle provides an [io.Reader] that caps how fast a stream is
// consumed using a token-bucket limiter from [golang.org/x/time/rate].
//
// # Usage
//
// Wrap a response body with [NewReader]:
//
//	body, err := throttle.NewReader(ctx, resp.Body, 512*1024, logger)
//
// Each read is sized to the bucket and then waits for as many tokens as
// bytes were returned, so the average rate never exceeds the limit.
package throttle
