package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// progressWriter is an io.Writer, logging transfer progress at
// most once per second.
type progressWriter struct {
	w           io.Writer
	logger      *slog.Logger
	transferred uint64
	total       int64
	startTime   time.Time
	lastLog     time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += uint64(n)

	if time.Since(pw.lastLog) >= time.Second {
		pw.lastLog = time.Now()
		pw.log("downloading")
	}

	return n, err
}

func (pw *progressWriter) done() {
	pw.log("download complete")
}

func (pw *progressWriter) log(msg string) {
	elapsed := time.Since(pw.startTime)

	attrs := []any{
		"transferred", humanize.Bytes(pw.transferred),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	}
	if pw.total > 0 {
		attrs = append(attrs,
			"total", humanize.Bytes(uint64(pw.total)),
			"progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100),
		)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, "rate", humanize.Bytes(uint64(float64(pw.transferred)/secs))+"/s")
	}

	pw.logger.Info(msg, attrs...)
}
