package throttle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// maxBurst bounds the bucket size, and therefore the largest single read,
// for very high limits.
const maxBurst = 64 * 1024

// reader is an io.Reader, using the time/rate token bucket limiter
// to restrict how many bytes per second are drawn from r.
type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	burst   int
	logger  *slog.Logger
	waited  time.Duration
}

// NewReader returns r limited to bytesPerSec. The limiter waits on ctx, so
// cancelling it unblocks a pending read. A nil logger disables the wait
// summary logged when the stream ends.
func NewReader(ctx context.Context, r io.Reader, bytesPerSec uint64, logger *slog.Logger) (io.Reader, error) {
	if bytesPerSec == 0 {
		return nil, fmt.Errorf("bytes per second %w", ErrMustNotBeZero)
	}

	burst := maxBurst
	if bytesPerSec < maxBurst {
		burst = int(bytesPerSec)
	}

	t := &reader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		burst:   burst,
		logger:  logger,
	}

	return t, nil
}

func (t *reader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if len(p) > t.burst {
		p = p[:t.burst]
	}

	n, err := t.r.Read(p)
	if n > 0 {
		start := time.Now()
		werr := t.limiter.WaitN(t.ctx, n)
		t.waited += time.Since(start)
		if werr != nil {
			return n, fmt.Errorf("%w: %w", ErrWaitingFailed, werr)
		}
	}

	if errors.Is(err, io.EOF) && t.logger != nil {
		t.logger.Info("throttle wait complete", "waited", t.waited.Round(time.Millisecond).String(), "rate", t.limiter.Limit(), "burst", t.burst)
	}

	return n, err
}
