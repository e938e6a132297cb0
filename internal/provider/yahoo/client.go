// Package yahoo talks to the Yahoo Finance option endpoints: the cookie and
// crumb handshake, the session that caches them, and the option chain call.
package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/putscan/internal/config"
	"github.com/sawpanic/putscan/internal/domain"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/net/client"
)

const maxBodyBytes = 8 << 20

// Client issues raw provider requests. It holds no session state.
type Client struct {
	http    *http.Client
	cfg     config.ProviderConfig
	metrics *metrics.Registry
}

// NewClient builds a client whose requests go through the rate-limited,
// circuit-broken transport. A nil base uses http.DefaultTransport.
func NewClient(cfg config.ProviderConfig, base http.RoundTripper, reg *metrics.Registry) *Client {
	return &Client{
		http: &http.Client{
			Transport: client.NewTransport(cfg, base, reg),
			Timeout:   cfg.GetRequestTimeout(),
		},
		cfg:     cfg,
		metrics: reg,
	}
}

// FetchCookie performs the bootstrap request and returns the cookies it set,
// formatted for a Cookie header. The endpoint commonly answers 404 while
// still setting the cookie, so the status code is not checked.
func (c *Client) FetchCookie(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CookieURL, nil)
	if err != nil {
		return "", &ProviderError{Op: "cookie", Err: err}
	}

	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.metrics.ObserveProviderRequest("cookie", "error")
		return "", &ProviderError{Op: "cookie", Err: err}
	}
	defer drain(resp.Body)
	c.metrics.ObserveProviderRequest("cookie", statusClass(resp.StatusCode))

	cookies := resp.Cookies()
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.Value == "" {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	if len(parts) == 0 {
		return "", &ProviderError{Op: "cookie", StatusCode: resp.StatusCode, Err: ErrNoCookie}
	}
	return strings.Join(parts, "; "), nil
}

// FetchCrumb exchanges a session cookie for an anti-forgery crumb.
func (c *Client) FetchCrumb(ctx context.Context, cookie string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CrumbURL, nil)
	if err != nil {
		return "", &ProviderError{Op: "crumb", Err: err}
	}
	req.Header.Set("Cookie", cookie)

	body, status, err := c.do(req, "crumb")
	if err != nil {
		return "", &ProviderError{Op: "crumb", StatusCode: status, Err: err}
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", &ProviderError{Op: "crumb", StatusCode: status, Err: ErrEmptyCrumb}
	}
	return crumb, nil
}

// FetchChain requests the put chain for ticker at expiry using cred. A 401
// answer yields an error wrapping ErrUnauthorized.
func (c *Client) FetchChain(ctx context.Context, cred Credential, ticker string, expiry time.Time) (*domain.Chain, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.ChainURL, "/") + "/" + url.PathEscape(ticker))
	if err != nil {
		return nil, &ProviderError{Op: "chain", Ticker: ticker, Err: err}
	}
	q := u.Query()
	q.Set("date", strconv.FormatInt(expiry.Unix(), 10))
	q.Set("crumb", cred.Crumb)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ProviderError{Op: "chain", Ticker: ticker, Err: err}
	}
	req.Header.Set("Cookie", cred.Cookie)
	req.Header.Set("Accept", "application/json")

	body, status, err := c.do(req, "chain")
	if err != nil {
		return nil, &ProviderError{Op: "chain", Ticker: ticker, StatusCode: status, Err: err}
	}

	chain, err := ParseChain(ticker, expiry, body)
	if err != nil {
		return nil, &ProviderError{Op: "chain", Ticker: ticker, StatusCode: status, Err: err}
	}
	return chain, nil
}

// do sends req and returns the body of a 2xx answer. A 401 maps to
// ErrUnauthorized; any other status is an error carrying the status code.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveProviderRequest(endpoint, "error")
		return nil, 0, err
	}
	defer drain(resp.Body)
	c.metrics.ObserveProviderRequest(endpoint, statusClass(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
	_ = body.Close()
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
