package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// CaptureAuthToken opens a visible browser at pageURL, blocks on waitForUser
// while the user logs in by hand, then returns the auth_session cookie value.
func CaptureAuthToken(ctx context.Context, pageURL string, waitForUser func() error) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Give the user time to log in
	browserCtx, cancel = context.WithTimeout(browserCtx, 10*time.Minute)
	defer cancel()

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
	); err != nil {
		return "", fmt.Errorf("navigating to login page: %w", err)
	}

	if err := waitForUser(); err != nil {
		return "", err
	}

	return ExtractCookie(browserCtx, authCookieName)
}

// ExtractCookie returns the value of the named cookie from the current browser context
func ExtractCookie(ctx context.Context, name string) (string, error) {
	var cookies []*network.Cookie

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return "", fmt.Errorf("getting cookies: %w", err)
	}

	value, ok := findCookie(cookies, name)
	if !ok {
		return "", fmt.Errorf("no %s cookie found - make sure you're logged in", name)
	}
	return value, nil
}

func findCookie(cookies []*network.Cookie, name string) (string, bool) {
	for _, c := range cookies {
		if c != nil && c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}
