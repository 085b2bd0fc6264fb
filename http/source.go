// Package http serves .blend files over HTTP range requests.
//
// A Source implements blend.ByteSource, so a remote file can be opened with
// blend.OpenSource without downloading it. Combine it with a block cache to
// absorb the many small reads a directory scan makes.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
)

// ErrContentChanged is returned when the remote content changed after the
// Source was created.
var ErrContentChanged = errors.New("http: remote content changed")

// Source implements random access reads via HTTP range requests.
type Source struct {
	ctx     context.Context
	url     string
	client  *nethttp.Client
	headers nethttp.Header
	size    int64
	etag    string
	id      string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on each request, e.g. Authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the identifier used for block caching.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.id = id
	}
}

// NewSource creates a Source for url. It probes the remote with a one-byte
// range request to learn the content size and validator.
//
// ctx bounds the probe and every later read made through the Source.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		ctx:    ctx,
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if err := s.probe(); err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	if s.id == "" {
		s.id = "http:" + url + "#" + strconv.FormatInt(s.size, 10)
		if s.etag != "" {
			s.id += "#" + s.etag
		}
	}
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.id
}

// ReadAt implements io.ReaderAt with one range request per call.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rc, err := s.ReadRange(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, p[:min(int64(len(p)), s.size-off)])
	if err != nil {
		return n, fmt.Errorf("read range at %d: %w", off, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns a reader for [off, off+length), clipped to the content
// size. An offset at or past the end returns io.EOF. The caller must close
// the reader.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	switch {
	case off < 0:
		return nil, fmt.Errorf("read range %d: negative offset", off)
	case length < 0:
		return nil, fmt.Errorf("read range length %d: negative length", length)
	case off >= s.size:
		return nil, io.EOF
	case length == 0:
		return io.NopCloser(strings.NewReader("")), nil
	}
	length = min(length, s.size-off)

	resp, err := s.get(off, off+length-1)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return &rangeBody{ReadCloser: resp.Body, r: io.LimitReader(resp.Body, length)}, nil
	case nethttp.StatusOK, nethttp.StatusPreconditionFailed:
		// If-Range fell back to the full body: the validator no longer matches.
		drain(resp.Body)
		return nil, ErrContentChanged
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
}

func (s *Source) probe() error {
	resp, err := s.get(0, 0)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return errors.New("range requests not supported")
	default:
		return fmt.Errorf("range probe failed: %s", resp.Status)
	}
	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	if etag := resp.Header.Get("ETag"); etag != "" && !strings.HasPrefix(etag, "W/") {
		s.etag = etag
	}
	return nil
}

// get issues a ranged GET for the inclusive byte range [first, last].
func (s *Source) get(first, last int64) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, nethttp.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))
	if s.etag != "" {
		req.Header.Set("If-Range", s.etag)
	}
	return s.client.Do(req)
}

// rangeBody limits reads to the requested length and drains on Close so the
// connection can be reused.
type rangeBody struct {
	io.ReadCloser
	r io.Reader
}

func (b *rangeBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *rangeBody) Close() error {
	_, _ = io.Copy(io.Discard, b.ReadCloser) //nolint:errcheck // best-effort drain
	return b.ReadCloser.Close()
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain
	_ = body.Close()
}

// parseContentRange extracts the complete length from "bytes a-b/size".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
