package scraper

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgoulah/waterdelta/internal/apperr"
)

// FetchResult describes a completed Fetch
type FetchResult struct {
	Cookie   SessionCookie // session state after the last hop
	Hops     int           // redirects followed before the 200
	Bytes    int64         // body bytes written to the sink
	FinalURL string
}

// Fetch follows the redirect chain at rawURL with an established session and
// streams the final response body into sink.
func (c *WaterSmartClient) Fetch(ctx context.Context, rawURL string, cookie SessionCookie, sink io.Writer) (FetchResult, error) {
	if cookie.ID == "" {
		return FetchResult{}, &apperr.ProtocolError{URL: rawURL, Message: "session not established, log in before fetching"}
	}

	resp, cookie, hops, err := c.walk(ctx, rawURL, cookie)
	if err != nil {
		return FetchResult{Cookie: cookie, Hops: hops}, err
	}
	defer resp.Body.Close()

	result := FetchResult{Cookie: cookie, Hops: hops, FinalURL: resp.Request.URL.String()}

	body, err := decodeBody(resp)
	if err != nil {
		return result, err
	}
	defer body.Close()

	sw := &sinkWriter{w: sink}
	n, err := io.Copy(sw, body)
	result.Bytes = n
	if err != nil {
		if sw.err != nil {
			return result, &apperr.IOError{Op: "write", Err: sw.err}
		}
		return result, apperr.FromRequest(result.FinalURL, err)
	}

	c.log.Debug().Str("url", result.FinalURL).Int64("bytes", n).Int("hops", hops).Msg("Download completed")
	return result, nil
}

// Download fetches rawURL and returns the body as text. When path is set the
// body is also written there in the same pass, through a temp file that is
// renamed into place only once the whole body has arrived.
func (c *WaterSmartClient) Download(ctx context.Context, rawURL string, cookie SessionCookie, path string) (string, FetchResult, error) {
	var buf bytes.Buffer

	if path == "" {
		result, err := c.Fetch(ctx, rawURL, cookie, &buf)
		if err != nil {
			return "", result, err
		}
		return buf.String(), result, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", FetchResult{}, &apperr.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", FetchResult{}, &apperr.IOError{Op: "create", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	result, err := c.Fetch(ctx, rawURL, cookie, io.MultiWriter(tmp, &buf))
	if err != nil {
		var ioErr *apperr.IOError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = path
		}
		return "", result, err
	}

	if err := tmp.Sync(); err != nil {
		return "", result, &apperr.IOError{Op: "sync", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", result, &apperr.IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", result, &apperr.IOError{Op: "rename", Path: path, Err: err}
	}

	return buf.String(), result, nil
}

// decodeBody undoes the Content-Encoding we advertised in Accept-Encoding
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	finalURL := resp.Request.URL.String()

	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &apperr.ProtocolError{URL: finalURL, StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid gzip body: %v", err)}
		}
		return zr, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, &apperr.ProtocolError{URL: finalURL, StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid deflate body: %v", err)}
		}
		return zr, nil
	default:
		return nil, &apperr.ProtocolError{URL: finalURL, StatusCode: resp.StatusCode, Message: fmt.Sprintf("unsupported Content-Encoding %q", enc)}
	}
}

// sinkWriter remembers write failures so they are not mistaken for a
// network error by io.Copy's caller.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}
