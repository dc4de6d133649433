package fetch_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/fetch/internal/client"
	"github.com/adamwoolhether/fetch/internal/config"
	"github.com/adamwoolhether/fetch/internal/download"
	"github.com/adamwoolhether/fetch/internal/fetch"
	"github.com/adamwoolhether/fetch/internal/logger"
	"github.com/adamwoolhether/fetch/internal/output"
	"github.com/adamwoolhether/fetch/internal/plan"
	"github.com/adamwoolhether/fetch/internal/testserver"
)

type env struct {
	server  *httptest.Server
	caFile  string
	tempDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	handler := testserver.New(
		testserver.WithLogger(logger.New(io.Discard, logger.LevelOff)),
		testserver.WithSlowDelay(5*time.Second),
	)
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, caPEM, 0o644))

	return &env{server: ts, caFile: caFile, tempDir: t.TempDir()}
}

func (e *env) options(path string) config.Options {
	opts := config.Default()
	opts.URL = e.server.URL + path
	opts.CACert = e.caFile
	return opts
}

type result struct {
	stdout string
	stderr string
	err    error
	code   int
}

func (e *env) run(t *testing.T, opts config.Options) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	log := logger.New(&stderr, logger.Level(opts.Verbose, opts.Silent, opts.ShowError))

	err := fetch.Run(t.Context(), opts, &stdout, log, fetch.WithTempDir(e.tempDir))
	code := fetch.Report(err, log)

	entries, rerr := os.ReadDir(e.tempDir)
	require.NoError(t, rerr)
	assert.Empty(t, entries, "staging files left behind")

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err, code: code}
}

func TestRun_Requests(t *testing.T) {
	e := newEnv(t)

	bodyFile := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(bodyFile, []byte("from a file"), 0o644))

	testCases := []struct {
		name   string
		path   string
		mutate func(*config.Options)
		exp    string
	}{
		{name: "get", path: "/", mutate: func(*config.Options) {}, exp: "Welcome!"},
		{name: "post inline", path: "/echo_post", mutate: func(o *config.Options) { o.Data = config.Some("hello") }, exp: "hello"},
		{name: "post file", path: "/echo_post", mutate: func(o *config.Options) { o.Data = config.Some("@" + bodyFile) }, exp: "from a file"},
		{name: "post raw keeps sigil", path: "/echo_post", mutate: func(o *config.Options) { o.DataRaw = config.Some("@" + bodyFile) }, exp: "@" + bodyFile},
		{name: "put", path: "/echo_put", mutate: func(o *config.Options) { o.Request = "put"; o.Data = config.Some("updated") }, exp: "updated"},
		{name: "patch", path: "/echo_patch", mutate: func(o *config.Options) { o.Request = "PATCH"; o.Data = config.Some("patched") }, exp: "patched"},
		{name: "delete", path: "/delete", mutate: func(o *config.Options) { o.Request = "delete" }, exp: "Removed"},
		{name: "form", path: "/echo_form", mutate: func(o *config.Options) { o.Form = []string{"a=1", "skipped", " b =2"} }, exp: "a = 1;b = 2;"},
		{name: "default user agent", path: "/user_agent", mutate: func(*config.Options) {}, exp: plan.DefaultUserAgent},
		{name: "user agent flag", path: "/user_agent", mutate: func(o *config.Options) { o.UserAgent = "ci-bot/3" }, exp: "ci-bot/3"},
		{name: "user agent header", path: "/user_agent", mutate: func(o *config.Options) { o.Headers = []string{"User-Agent: hdr/1"} }, exp: "hdr/1"},
		{name: "follow redirects", path: "/redirect/3", mutate: func(o *config.Options) { o.Location = true }, exp: "Welcome!"},
		{name: "insecure", path: "/", mutate: func(o *config.Options) { o.CACert = ""; o.Insecure = true }, exp: "Welcome!"},
		{name: "tls floor", path: "/", mutate: func(o *config.Options) { o.TLSv12 = true }, exp: "Welcome!"},
		{name: "rate limited", path: "/", mutate: func(o *config.Options) { o.LimitRate = "1M" }, exp: "Welcome!"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := e.options(tc.path)
			tc.mutate(&opts)

			res := e.run(t, opts)
			require.NoError(t, res.err)
			assert.Equal(t, fetch.ExitOK, res.code)
			assert.Equal(t, tc.exp, res.stdout)
			assert.Empty(t, res.stderr)
		})
	}
}

func TestRun_NamedOutput(t *testing.T) {
	e := newEnv(t)
	out := filepath.Join(t.TempDir(), "artifact.bin")

	opts := e.options("/payload/100000")
	opts.Output = out

	res := e.run(t, opts)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	got, err := os.ReadFile(out)
	require.NoError(t, err)

	want, _ := io.ReadAll(io.LimitReader(testserver.Pattern(), 100000))
	assert.True(t, bytes.Equal(want, got))
}

func TestRun_Checksums(t *testing.T) {
	e := newEnv(t)

	want, _ := io.ReadAll(io.LimitReader(testserver.Pattern(), 50000))
	md5Sum := md5.Sum(want)
	shaSum := sha256.Sum256(want)
	goodMD5, goodSHA := hex.EncodeToString(md5Sum[:]), hex.EncodeToString(shaSum[:])
	badSHA := strings.Repeat("ab", 32)

	testCases := []struct {
		name      string
		md5       string
		sha256    string
		expReason download.Reason
	}{
		{name: "both match", md5: goodMD5, sha256: goodSHA},
		{name: "uppercase", md5: strings.ToUpper(goodMD5), sha256: strings.ToUpper(goodSHA)},
		{name: "sha mismatch", sha256: badSHA, expReason: download.ChecksumMismatch},
		{name: "md5 mismatch", md5: strings.Repeat("0", 32), sha256: goodSHA, expReason: download.ChecksumMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "artifact")

			opts := e.options("/payload/50000")
			opts.MD5 = tc.md5
			opts.SHA256 = tc.sha256
			opts.Output = out

			res := e.run(t, opts)

			if tc.expReason == 0 {
				require.NoError(t, res.err)
				assert.FileExists(t, out)
				return
			}

			var dlErr *download.Error
			require.ErrorAs(t, res.err, &dlErr)
			assert.Equal(t, tc.expReason, dlErr.Reason)
			assert.Equal(t, fetch.ExitFailure, res.code)
			assert.NoFileExists(t, out)
			assert.Equal(t, 1, strings.Count(res.stderr, "\n"))
			assert.True(t, strings.HasPrefix(res.stderr, "error: "))
		})
	}

	t.Run("mismatch to stdout relays nothing", func(t *testing.T) {
		opts := e.options("/payload/50000")
		opts.SHA256 = badSHA

		res := e.run(t, opts)
		assert.ErrorIs(t, res.err, download.ErrChecksumMismatch)
		assert.Empty(t, res.stdout)
		assert.Contains(t, res.stderr, "error: SHA256 checksum mismatch: expected "+badSHA+" but was "+goodSHA)
	})
}

func TestRun_SizeCeiling(t *testing.T) {
	e := newEnv(t)

	testCases := []struct {
		name      string
		path      string
		expReason download.Reason
	}{
		{name: "announced", path: "/payload/200000", expReason: download.AnnouncedSizeExceeded},
		{name: "streamed", path: "/stream/200000", expReason: download.SizeExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "artifact")

			opts := e.options(tc.path)
			opts.MaxFilesize = "100000"
			opts.Output = out

			res := e.run(t, opts)

			var dlErr *download.Error
			require.ErrorAs(t, res.err, &dlErr)
			assert.Equal(t, tc.expReason, dlErr.Reason)
			assert.NoFileExists(t, out)
			assert.Contains(t, res.stderr, "error: content length too large")
		})
	}

	t.Run("under the ceiling", func(t *testing.T) {
		opts := e.options("/stream/1000")
		opts.MaxFilesize = "1KB"

		res := e.run(t, opts)
		require.NoError(t, res.err)
		assert.Len(t, res.stdout, 1000)
	})
}

func TestRun_StatusPolicies(t *testing.T) {
	e := newEnv(t)

	testCases := []struct {
		name      string
		mutate    func(*config.Options)
		expStdout string
		expStderr string
	}{
		{
			name:      "fail fast",
			mutate:    func(*config.Options) {},
			expStderr: "error: bad http status: 500 Internal Server Error\n",
		},
		{
			name:   "fail silent",
			mutate: func(o *config.Options) { o.Fail = true },
		},
		{
			name:      "fail silent verbose",
			mutate:    func(o *config.Options) { o.Fail = true; o.Verbose = true },
			expStderr: "info: bad http status: 500 Internal Server Error\n",
		},
		{
			name:      "fail with body",
			mutate:    func(o *config.Options) { o.FailWithBody = true },
			expStdout: "Something went wrong.",
			expStderr: "error: bad http status: 500 Internal Server Error\n",
		},
		{
			name:   "silent hides the diagnostic",
			mutate: func(o *config.Options) { o.Silent = true },
		},
		{
			name:      "show error keeps it",
			mutate:    func(o *config.Options) { o.Silent, o.ShowError = true, true },
			expStderr: "error: bad http status: 500 Internal Server Error\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := e.options("/error")
			tc.mutate(&opts)

			res := e.run(t, opts)

			var statusErr *output.StatusError
			require.ErrorAs(t, res.err, &statusErr)
			assert.Equal(t, 500, statusErr.StatusCode)
			assert.Equal(t, fetch.ExitFailure, res.code)
			assert.Equal(t, tc.expStdout, res.stdout)

			if tc.name == "fail silent verbose" {
				assert.True(t, strings.HasSuffix(res.stderr, tc.expStderr), res.stderr)
				assert.NotContains(t, res.stderr, "error:")
				return
			}
			assert.Equal(t, tc.expStderr, res.stderr)
		})
	}

	t.Run("redirect not followed", func(t *testing.T) {
		res := e.run(t, e.options("/redirect/1"))
		assert.ErrorIs(t, res.err, output.ErrBadStatus)
		assert.Equal(t, "error: bad http status: 302 Found\n", res.stderr)
	})
}

func TestRun_IncludeHeaders(t *testing.T) {
	e := newEnv(t)

	opts := e.options("/")
	opts.Include = true

	res := e.run(t, opts)
	require.NoError(t, res.err)

	assert.True(t, strings.HasPrefix(res.stdout, "HTTP/1.1 200 OK\r\n"), res.stdout)
	assert.Contains(t, res.stdout, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(res.stdout, "\r\n\r\nWelcome!"), res.stdout)

	t.Run("echoed before failing", func(t *testing.T) {
		opts := e.options("/error")
		opts.Include = true

		res := e.run(t, opts)
		assert.Error(t, res.err)
		assert.True(t, strings.HasPrefix(res.stdout, "HTTP/1.1 500 Internal Server Error\r\n"), res.stdout)
		assert.True(t, strings.HasSuffix(res.stdout, "\r\n\r\n"), res.stdout)
	})
}

func TestRun_FatalBeforeTransfer(t *testing.T) {
	e := newEnv(t)

	testCases := []struct {
		name   string
		path   string
		mutate func(*config.Options)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "invalid method",
			path:   "/",
			mutate: func(o *config.Options) { o.Request = "BREW" },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, plan.ErrInvalidMethod) },
		},
		{
			name:   "missing ca file",
			path:   "/",
			mutate: func(o *config.Options) { o.CACert = filepath.Join(t.TempDir(), "missing.pem") },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, plan.ErrTrustAnchors) },
		},
		{
			name:   "invalid options",
			path:   "/",
			mutate: func(o *config.Options) { o.MD5 = "xyz" },
			check: func(t *testing.T, err error) {
				var fe config.FieldErrors
				assert.ErrorAs(t, err, &fe)
			},
		},
		{
			name:   "untrusted certificate",
			path:   "/",
			mutate: func(o *config.Options) { o.CACert = "" },
			check: func(t *testing.T, err error) {
				var tErr *client.TransportError
				assert.ErrorAs(t, err, &tErr)
			},
		},
		{
			name:   "https disabled",
			path:   "/",
			mutate: func(o *config.Options) { o.Proto = "=http" },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, client.ErrProtocolDisabled) },
		},
		{
			name:   "too many redirects",
			path:   "/redirect/3",
			mutate: func(o *config.Options) { o.Location = true; o.MaxRedirs = 1 },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, client.ErrTooManyRedirects) },
		},
		{
			name:   "total timeout",
			path:   "/slow_answer",
			mutate: func(o *config.Options) { o.MaxTime = 0.2 },
			check: func(t *testing.T, err error) {
				var tErr *client.TransportError
				assert.ErrorAs(t, err, &tErr)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := e.options(tc.path)
			tc.mutate(&opts)

			res := e.run(t, opts)
			require.Error(t, res.err)
			tc.check(t, res.err)

			assert.Equal(t, fetch.ExitFailure, res.code)
			assert.Empty(t, res.stdout)
			assert.Equal(t, 1, strings.Count(res.stderr, "error: "), res.stderr)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var stdout bytes.Buffer
	log := logger.New(io.Discard, logger.LevelOff)

	err := fetch.Run(ctx, e.options("/slow_answer"), &stdout, log, fetch.WithTempDir(e.tempDir))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), err.Error())
	assert.Equal(t, fetch.ExitFailure, fetch.Report(err, log))
}

func TestReport(t *testing.T) {
	var stderr bytes.Buffer
	log := logger.New(&stderr, logger.Level(false, false, false))

	assert.Equal(t, fetch.ExitOK, fetch.Report(nil, log))
	assert.Empty(t, stderr.String())

	assert.Equal(t, fetch.ExitFailure, fetch.Report(errors.New("boom"), log))
	assert.Equal(t, "error: boom\n", stderr.String())
}
