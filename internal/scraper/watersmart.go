package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/waterdelta/internal/apperr"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// Options configures a WaterSmartClient
type Options struct {
	LoginURL      string
	SessionCookie string        // name of the short-lived session cookie
	Timeout       time.Duration // per request, including the body
	MaxRedirects  int
	Logger        zerolog.Logger
}

// WaterSmartClient logs in to a WaterSmart portal and downloads account data.
// Redirects are followed by hand so the session cookie can be refreshed on
// every hop.
type WaterSmartClient struct {
	client        *http.Client
	loginURL      string
	origin        string
	sessionCookie string
	maxRedirects  int
	log           zerolog.Logger
}

// NewWaterSmartClient creates a new portal client
func NewWaterSmartClient(opts Options) (*WaterSmartClient, error) {
	login, err := url.Parse(opts.LoginURL)
	if err != nil || login.Scheme == "" || login.Host == "" {
		return nil, &apperr.ConfigError{Field: "login_url", Message: fmt.Sprintf("invalid URL %q", opts.LoginURL)}
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "PHPSESSID"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 20
	}

	return &WaterSmartClient{
		client:        newHTTPClient(opts.Timeout),
		loginURL:      login.String(),
		origin:        login.Scheme + "://" + login.Host,
		sessionCookie: opts.SessionCookie,
		maxRedirects:  opts.MaxRedirects,
		log:           opts.Logger,
	}, nil
}

// newHTTPClient returns a client that hands every 3xx back to the caller
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Login submits the credentials, captures the session id from the login
// redirect and follows the rest of the chain. The returned cookie is ready
// for Fetch.
func (c *WaterSmartClient) Login(ctx context.Context, creds Credentials) (SessionCookie, error) {
	if err := creds.Validate(); err != nil {
		return SessionCookie{}, err
	}

	form := url.Values{}
	form.Set("token", "")
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return SessionCookie{}, fmt.Errorf("creating login request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Debug().Str("url", c.loginURL).Msg("Submitting login form")

	resp, err := c.client.Do(req)
	if err != nil {
		return SessionCookie{}, apperr.FromRequest(c.loginURL, err)
	}
	defer drainAndClose(resp)

	location := resp.Header.Get("Location")
	if !isRedirect(resp.StatusCode) || location == "" {
		return SessionCookie{}, &apperr.ProtocolError{
			URL:        c.loginURL,
			StatusCode: resp.StatusCode,
			Message:    "unexpected status code from login (expected a redirect)",
		}
	}

	cookie, ok := NewSessionCookie(creds.AuthToken, c.sessionCookie).Apply(resp.Header.Values("Set-Cookie"))
	if !ok {
		return SessionCookie{}, &apperr.ProtocolError{
			URL:        c.loginURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("login response did not set a %s cookie", c.sessionCookie),
		}
	}

	next, err := resolve(c.loginURL, location)
	if err != nil {
		return SessionCookie{}, err
	}
	c.log.Debug().Str("url", next).Msg("First redirect")

	return c.Follow(ctx, next, cookie)
}

// Follow walks the redirect chain starting at rawURL until the portal answers
// 200, and returns the cookie carrying the most recent session id.
func (c *WaterSmartClient) Follow(ctx context.Context, rawURL string, cookie SessionCookie) (SessionCookie, error) {
	resp, cookie, _, err := c.walk(ctx, rawURL, cookie)
	if err != nil {
		return SessionCookie{}, err
	}
	finalURL := resp.Request.URL.String()
	drainAndClose(resp)

	if cookie.ID == "" {
		return SessionCookie{}, &apperr.ProtocolError{URL: finalURL, Message: "no session identifier obtained"}
	}

	c.log.Debug().Str("url", finalURL).Msg("Final destination reached")
	return cookie, nil
}

// walk issues GETs from rawURL, following redirects and applying any new
// session cookie, until a 200 arrives. The 200 response is returned with its
// body unread; the caller closes it. hops is the number of redirects followed.
func (c *WaterSmartClient) walk(ctx context.Context, rawURL string, cookie SessionCookie) (*http.Response, SessionCookie, int, error) {
	current := rawURL

	for hops := 0; ; hops++ {
		if hops > c.maxRedirects {
			return nil, cookie, hops, &apperr.ProtocolError{
				URL:     current,
				Message: fmt.Sprintf("redirect loop: more than %d redirects", c.maxRedirects),
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, cookie, hops, fmt.Errorf("creating request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Cookie", cookie.Header())

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, cookie, hops, apperr.FromRequest(current, err)
		}

		location := resp.Header.Get("Location")
		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, cookie, hops, nil

		case isRedirect(resp.StatusCode) && location != "":
			var updated bool
			cookie, updated = cookie.Apply(resp.Header.Values("Set-Cookie"))
			drainAndClose(resp)

			next, err := resolve(current, location)
			if err != nil {
				return nil, cookie, hops, err
			}
			c.log.Debug().
				Int("hop", hops+1).
				Int("status", resp.StatusCode).
				Str("url", next).
				Bool("session_updated", updated).
				Msg("Redirecting")
			current = next

		default:
			drainAndClose(resp)
			msg := "unexpected status code"
			if isRedirect(resp.StatusCode) {
				msg = "redirect without Location header"
			}
			return nil, cookie, hops, &apperr.ProtocolError{URL: current, StatusCode: resp.StatusCode, Message: msg}
		}
	}
}

// setHeaders adds the browser-like headers the portal expects; requests
// without them are rejected as bots.
func (c *WaterSmartClient) setHeaders(req *http.Request) {
	h := req.Header
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("DNT", "1")
	h.Set("Origin", c.origin)
	h.Set("Referer", c.origin+"/index.php/logout")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("User-Agent", userAgent)
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// resolve turns a possibly relative Location into an absolute URL
func resolve(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", &apperr.ProtocolError{URL: base, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	ref, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", &apperr.ProtocolError{URL: base, Message: fmt.Sprintf("invalid Location header %q: %v", location, err)}
	}
	return b.ResolveReference(ref).String(), nil
}

// drainAndClose discards a bounded amount of body so the connection can be reused
func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
