package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"medicine_importer/internal/logger"
	"medicine_importer/internal/models"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const MaxHops = 15

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// HTTPFetcher downloads pages and binary assets with a browser profile.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}
	jar, _ := cookiejar.New(nil)

	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				DisableCompression:    true,
				ExpectContinueTimeout: time.Second,
			},
			Jar:     jar,
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxHops {
					return fmt.Errorf("stopped after %d redirects", MaxHops)
				}
				return nil
			},
		},
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger.OrNop(opts.Logger),
	}
}

// Client exposes the underlying client so robots.txt fetches share it.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

func (f *HTTPFetcher) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	resp, err := f.do(ctx, urlStr, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := f.decodedBody(resp)
	if err != nil {
		return "", err
	}

	utf8Reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = body
	}
	data, err := f.readLimited(utf8Reader)
	if err != nil {
		return "", err
	}

	html := string(data)
	if isBotChallenge(html) {
		return "", fmt.Errorf("%w: %s", models.ErrBotChallenge, urlStr)
	}
	f.logger.Debug("fetched page", zap.String("url", urlStr), zap.Int("bytes", len(html)))
	return html, nil
}

func (f *HTTPFetcher) FetchBytes(ctx context.Context, urlStr string) ([]byte, string, error) {
	resp, err := f.do(ctx, urlStr, "image/avif,image/webp,image/*,*/*;q=0.8")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := f.decodedBody(resp)
	if err != nil {
		return nil, "", err
	}
	data, err := f.readLimited(body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (f *HTTPFetcher) do(ctx context.Context, urlStr, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", models.ErrFetchFailed, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d for %s", models.ErrFetchFailed, resp.StatusCode, urlStr)
	}
	return resp, nil
}

func (f *HTTPFetcher) decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip decode: %v", models.ErrFetchFailed, err)
		}
		return gz, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func (f *HTTPFetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", models.ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", models.ErrFetchFailed, f.maxBodyBytes)
	}
	return data, nil
}

func isBotChallenge(body string) bool {
	if len(body) > 20000 {
		// Real product pages are large; interstitials are short.
		return false
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "security check") ||
		strings.Contains(lower, "are you a robot") ||
		strings.Contains(lower, "access denied")
}
