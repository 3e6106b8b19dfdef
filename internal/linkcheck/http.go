package linkcheck

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// DefaultUserAgent identifies the checker to remote hosts.
const DefaultUserAgent = "docxref-linkcheck/1.0"

// maxDrainBytes bounds how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

var (
	maxRedirects   = 10
	redirectsError = fmt.Errorf("stopped after %d redirects", maxRedirects)
)

// HTTPChecker checks http and https targets. It sends HEAD first and falls
// back to GET when the server does not support HEAD.
type HTTPChecker struct {
	client    *http.Client
	userAgent string
}

// NewHTTPChecker creates a checker. A nil client gets a dedicated transport.
// The client must not set a Timeout: the per-attempt deadline comes from ctx.
func NewHTTPChecker(client *http.Client, userAgent string) *HTTPChecker {
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	if client.CheckRedirect == nil {
		client.CheckRedirect = checkRedirect
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPChecker{client: client, userAgent: userAgent}
}

// checkRedirect reimplements default http redirect policy but returning a typed error.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return redirectsError
	}
	return nil
}

// Check performs one attempt against target.
func (c *HTTPChecker) Check(ctx context.Context, target *url.URL) Outcome {
	out := c.do(ctx, http.MethodHead, target)
	if out.StatusCode == http.StatusMethodNotAllowed || out.StatusCode == http.StatusNotImplemented {
		out = c.do(ctx, http.MethodGet, target)
	}
	return out
}

func (c *HTTPChecker) do(ctx context.Context, method string, target *url.URL) Outcome {
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return Outcome{Class: ClassDefinitive, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(ctx, err)
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()

	return Outcome{
		Class:      classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Response:   resp,
	}
}

// classifyStatus maps a final HTTP status to an attempt class.
func classifyStatus(code int) Class {
	switch {
	case code >= 200 && code < 400:
		return ClassOK
	case code == http.StatusTooManyRequests:
		// Recoverable; the server may send Retry-After.
		return ClassTransient
	case code >= 400 && code < 500:
		return ClassDefinitive
	case code >= 500:
		return ClassTransient
	default:
		// Invalid response codes like 0 and 999 are treated as server trouble.
		return ClassTransient
	}
}

// classifyError maps a transport error to an attempt class.
func classifyError(ctx context.Context, err error) Outcome {
	out := Outcome{Class: ClassTransient, Err: err}

	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		out.Class = ClassTimeout
		return out
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		out.Class = ClassTimeout
		return out
	}

	if stderrors.Is(err, redirectsError) {
		// Too many redirects, let's stop here.
		out.Class = ClassDefinitive
		return out
	}

	var certErr *tls.CertificateVerificationError
	if stderrors.As(err, &certErr) {
		// Invalid certificate, not recoverable.
		out.Class = ClassDefinitive
		return out
	}

	if strings.Contains(err.Error(), "unsupported protocol scheme") {
		out.Class = ClassDefinitive
		return out
	}

	// Resets, refusals and other network errors are transient.
	return out
}
