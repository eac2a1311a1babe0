// Package preflight probes target hosts at the transport level before a
// browser page is consumed. Only hard transport failures (DNS, refused
// connection, TLS handshake, timeout) fail the probe; any HTTP status
// passes, because the real browser may succeed where a bare probe gets
// a bot-wall response.
package preflight

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/faiz-00/screenshot/models"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection, so TLS-fingerprint-sensitive hosts treat the probe the
// way they will treat the browser.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Should never happen with a valid utls version; the probe then
		// runs with HelloChrome_Auto as-is.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Checker performs reachability probes and remembers hosts that just
// hard-failed so back-to-back runs against a dead host short-circuit
// without re-dialing.
type Checker struct {
	client   *http.Client
	failures *failureMemory
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a Checker. failureTTL controls how long a hard-failed
// host is remembered.
func New(timeout, failureTTL time.Duration, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("preflight: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &Checker{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// The probe only cares about reachability; the first
				// response already proves it.
				return http.ErrUseLastResponse
			},
		},
		failures: newFailureMemory(failureTTL),
		timeout:  timeout,
		log:      log.With("component", "preflight"),
	}
}

// Check probes the target URL. A nil return means the host is reachable
// enough to spend a browser page on.
func (c *Checker) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return models.NewCaptureError(models.ErrCodeInvalidInput, "invalid target URL", err)
	}
	host := u.Hostname()

	if reason, failed := c.failures.get(host); failed {
		return models.NewCaptureError(
			models.ErrCodeNavigation,
			fmt.Sprintf("host %s recently unreachable: %s", host, reason),
			nil,
		)
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return models.NewCaptureError(models.ErrCodeInvalidInput, "invalid target URL", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.failures.set(host, err.Error())
		return models.NewCaptureError(models.ErrCodeNavigation, "target host unreachable", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Any HTTP status passes: a 403 for the probe says nothing about
	// what the full browser will get.
	c.log.Debug("preflight passed", "host", host, "status", resp.StatusCode)
	return nil
}

// Stop terminates the failure-memory janitor.
func (c *Checker) Stop() {
	c.failures.stop()
}
