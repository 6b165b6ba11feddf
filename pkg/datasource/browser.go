package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/transport"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// browserSession drives a headless chromium for endpoints that refuse plain http clients
type browserSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func startBrowser() (*browserSession, error) {
	logger.Info("Starting headless browser")
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright (try `go run github.com/playwright-community/playwright-go/cmd/playwright install chromium`): %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     []string{"--disable-gpu", "--no-sandbox"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}
	return &browserSession{pw: pw, browser: browser}, nil
}

func (b *browserSession) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(browserUserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return nil, fmt.Errorf("browser could not load %s: %w", url, err)
	}
	if resp != nil {
		if err := responseStatus(url, resp.Status()); err != nil {
			return nil, err
		}
	}
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("could not read page content: %w", err)
	}
	return BodyText(html)
}

// responseStatus matches the plain http client so callers can tell a missing page from a failure
func responseStatus(url string, status int) error {
	if status == http.StatusOK {
		return nil
	}
	return &transport.StatusError{URL: url, StatusCode: status}
}

func (b *browserSession) close() error {
	if err := b.browser.Close(); err != nil {
		logger.Warn("Failed to close browser", err)
	}
	return b.pw.Stop()
}

// BodyText pulls the visible text out of a rendered page, which for a json endpoint is the payload itself
func BodyText(html string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return nil, fmt.Errorf("page body is empty")
	}
	return []byte(text), nil
}
