package client

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/adamwoolhether/fetch/internal/plan"
)

// requestBody is the encoded form of a plan body ready for http.Request.
type requestBody struct {
	r             io.Reader
	contentLength int64
	contentType   string
}

func (c *Client) encodeBody(body plan.Body) requestBody {
	switch body.Kind {
	case plan.BodyInline:
		return requestBody{r: bytes.NewReader(body.Data), contentLength: int64(len(body.Data))}

	case plan.BodyFile:
		f, err := os.Open(body.Path)
		if err != nil {
			c.logger.Warn("failed to open body file, sending empty body", "path", body.Path, "error", err)
			return requestBody{r: http.NoBody}
		}

		size := int64(-1)
		if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
			size = info.Size()
		}
		return requestBody{r: f, contentLength: size}

	case plan.BodyMultipart:
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)

		go func() {
			pw.CloseWithError(writeFields(mw, body.Fields))
		}()

		return requestBody{r: pr, contentLength: -1, contentType: mw.FormDataContentType()}

	default:
		return requestBody{}
	}
}

func writeFields(mw *multipart.Writer, fields []plan.Field) error {
	for _, f := range fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return err
		}
	}

	return mw.Close()
}
