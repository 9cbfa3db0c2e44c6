package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware decompresses gzip-encoded request bodies so the
// board handlers always see plain JSON. Full-board PUTs carry the whole
// stage tree and clients are encouraged to compress them. Invalid gzip
// payloads are rejected with a 400 response.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := inflateRequestBody(c.Request()); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			return next(c)
		}
	}
}

// inflateRequestBody swaps the request body for an inflating reader when the
// Content-Encoding header names gzip. Plain requests pass through untouched.
func inflateRequestBody(req *http.Request) error {
	if !encodingListHas(req.Header.Get(echo.HeaderContentEncoding), "gzip") {
		return nil
	}

	raw := req.Body
	gr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}

	req.Body = readCloserChain(gr, gr, raw)
	req.ContentLength = -1
	req.Header.Del(echo.HeaderContentEncoding)
	req.Header.Del(echo.HeaderContentLength)
	return nil
}

// encodingListHas reports whether a comma-separated Content-Encoding value
// contains the given coding, ignoring case and surrounding whitespace.
func encodingListHas(header, coding string) bool {
	for header != "" {
		var token string
		token, header, _ = strings.Cut(header, ",")
		if strings.EqualFold(strings.TrimSpace(token), coding) {
			return true
		}
	}
	return false
}

// readCloserChain pairs a reader with the closers that must be released once
// the body is drained, innermost first.
func readCloserChain(r io.Reader, closers ...io.Closer) io.ReadCloser {
	return &chainedBody{Reader: r, closers: closers}
}

type chainedBody struct {
	io.Reader
	closers []io.Closer
}

func (b *chainedBody) Close() error {
	errs := make([]error, 0, len(b.closers))
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
