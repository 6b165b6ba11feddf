package transport

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"
	"github.com/richard-senior/leaguesim/internal/logger"
)

// CABundleEnv names a PEM file of extra root certificates, for corporate proxies
const CABundleEnv = "LEAGUESIM_CA_BUNDLE"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var (
	httpClient *http.Client
	clientMu   sync.Mutex
	json       = jsoniter.ConfigCompatibleWithStandardLibrary
)

// StatusError is returned for any non 200 response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

func caBundlePath() string {
	if p := os.Getenv(CABundleEnv); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".ssh", "zscaler_ca_bundle.pem")
}

// GetCustomHTTPClient returns the shared client, trusting the system roots plus any bundle found
func GetCustomHTTPClient() *http.Client {
	clientMu.Lock()
	defer clientMu.Unlock()
	if httpClient != nil {
		return httpClient
	}
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		logger.Warn("Failed to get system cert pool", err)
		rootCAs = x509.NewCertPool()
	}
	if pem, err := os.ReadFile(caBundlePath()); err == nil {
		if rootCAs.AppendCertsFromPEM(pem) {
			logger.Debug("Added extra CA bundle", caBundlePath())
		} else {
			logger.Warn("Could not parse CA bundle", caBundlePath())
		}
	}

	httpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
			Proxy:           http.ProxyFromEnvironment,
		},
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	return httpClient
}

// SetHTTPClient replaces the shared client, nil restores the default on next use
func SetHTTPClient(c *http.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	httpClient = c
}

// Get fetches url and returns the decoded body
func Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// look like a browser, the stats APIs reject obvious bots
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.sofascore.com/")

	resp, err := GetCustomHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	reader, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return data, nil
}

// GetJSON fetches url and decodes the body into v
func GetJSON(ctx context.Context, url string, v any) error {
	data, err := Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode json from %s: %w", url, err)
	}
	return nil
}

func decodeBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip":
		r, err := NewGzipReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return r, nil
	case "deflate":
		return NewDeflateReader(body)
	case "br":
		return NewBrotliReader(body)
	case "", "identity":
		return io.NopCloser(body), nil
	default:
		logger.Warn("Unknown content encoding:", encoding)
		return io.NopCloser(body), nil
	}
}

func NewGzipReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func NewDeflateReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

func NewBrotliReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}
