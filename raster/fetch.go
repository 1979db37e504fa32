package raster

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
	"golang.org/x/time/rate"
)

// MaxResourceBytes caps the size of a single fetched resource.
const MaxResourceBytes = 10 << 20

// Fetcher loads images referenced by markup. data: URLs are always allowed,
// http and https URLs go through Client, and relative paths are read from
// BaseDir when it is set. The zero value serves data: URLs and remote URLs
// with http.DefaultClient.
type Fetcher struct {
	Client *http.Client
	// Limiter, when set, throttles remote requests across all renders.
	Limiter *rate.Limiter
	// BaseDir enables local files. Paths may not escape it.
	BaseDir string
}

// Fetch loads and decodes the image at src.
func (f *Fetcher) Fetch(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", ErrResource)
	}

	rc, err := f.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := image.Decode(io.LimitReader(rc, MaxResourceBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrResource, shorten(src), err)
	}
	return img, nil
}

func (f *Fetcher) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if strings.HasPrefix(src, "data:") {
		data, err := decodeDataURL(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(data))), nil
	}

	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.get(ctx, u.String())
	}
	if err == nil && u.Scheme != "" && u.Scheme != "file" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrResource, u.Scheme)
	}
	return f.local(src)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResource, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrResource, rawURL, resp.Status)
	}
	if resp.ContentLength > MaxResourceBytes {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrResource, rawURL, resp.ContentLength)
	}
	return resp.Body, nil
}

func (f *Fetcher) local(src string) (io.ReadCloser, error) {
	if f.BaseDir == "" {
		return nil, fmt.Errorf("%w: local files are disabled (%s)", ErrResource, src)
	}
	src = strings.TrimPrefix(src, "file://")
	base, err := filepath.Abs(f.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	path := filepath.Join(base, filepath.FromSlash(src))
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrResource, src, base)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	return file, nil
}

// decodeDataURL returns the payload of a data: URL.
func decodeDataURL(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URL", ErrResource)
	}
	if strings.HasSuffix(meta, ";base64") {
		// Some producers strip padding or use the URL alphabet.
		payload = strings.TrimRight(strings.Map(dropSpace, payload), "=")
		data, err := base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: data URL: %v", ErrResource, err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data URL: %v", ErrResource, err)
	}
	return []byte(s), nil
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\n', '\r', '\t':
		return -1
	}
	return r
}

func shorten(src string) string {
	if len(src) > 64 {
		return src[:61] + "..."
	}
	return src
}
