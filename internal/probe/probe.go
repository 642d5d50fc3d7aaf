// Package probe issues single two-step (unauthenticated then
// Digest-authenticated) HTTP requests against candidate terminal
// addresses and normalizes whatever comes back into a device identity.
// It is the shared request primitive for both discovery sweeps and the
// protocol client.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/internal/digest"
	"github.com/HerbHall/gatesync/pkg/models"
)

// DeviceInfoPath is the ISAPI-style device-info endpoint.
const DeviceInfoPath = "/ISAPI/System/deviceInfo"

// Prober performs Digest-authenticated exchanges against one set of
// credentials. It is safe for concurrent use; a discovery sweep shares
// one Prober across its whole worker pool.
type Prober struct {
	username string
	password string
	client   *http.Client
	logger   *zap.Logger
}

// New creates a Prober. When insecureTLS is set, certificate validation
// is disabled: candidate devices almost always present self-signed
// certificates, and refusing them would make HTTPS discovery useless.
func New(username, password string, timeout time.Duration, insecureTLS bool, logger *zap.Logger) *Prober {
	return &Prober{
		username: username,
		password: password,
		logger:   logger,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureTLS}, //nolint:gosec // self-signed device certs
			},
		},
	}
}

// WithTimeout returns a Prober sharing credentials but using a
// different per-request timeout. Discovery uses this for its short
// per-host budget without disturbing the operational client.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	clone := *p
	clone.client = &http.Client{
		Timeout:   timeout,
		Transport: p.client.Transport,
	}
	return &clone
}

// Exchange performs the two-step request: one attempt without
// credentials, and on a Digest challenge a second attempt carrying the
// computed Authorization header. The response body is fully read and
// returned alongside the final status code.
func (p *Prober) Exchange(ctx context.Context, method, rawURL string, body []byte, accept string) (int, []byte, error) {
	status, respBody, header, err := p.do(ctx, method, rawURL, body, accept, "")
	if err != nil {
		return 0, nil, err
	}
	if status != http.StatusUnauthorized {
		return status, respBody, nil
	}

	challenge := digest.ParseChallenge(header.Get("WWW-Authenticate"))
	if !challenge.Valid() {
		p.logger.Warn("unusable digest challenge",
			zap.String("url", rawURL),
			zap.String("www_authenticate", header.Get("WWW-Authenticate")),
		)
	}
	uri := requestURI(rawURL)
	auth := digest.BuildAuthorization(method, uri, p.username, p.password, challenge)

	status, respBody, _, err = p.do(ctx, method, rawURL, body, accept, auth)
	if err != nil {
		return 0, nil, err
	}
	return status, respBody, nil
}

func (p *Prober) do(ctx context.Context, method, rawURL string, body []byte, accept, auth string) (int, []byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request %s %s: %w", method, rawURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response %s: %w", rawURL, err)
	}
	return resp.StatusCode, data, resp.Header, nil
}

// variant is one content-negotiation attempt. Firmware inconsistently
// honors Accept headers, so the probe tries a JSON-preferring and an
// XML-preferring request and stops at the first parseable identity.
type variant struct {
	query  string
	accept string
}

var variants = []variant{
	{query: "?format=json", accept: "application/json"},
	{query: "", accept: "application/xml"},
}

// Identity probes the device-info endpoint of one host and returns its
// normalized identity, or nil when the host yielded nothing usable.
// Every transport-level failure is swallowed here: a sweep must be able
// to try hundreds of dead addresses without one of them aborting it.
func (p *Prober) Identity(ctx context.Context, address string, port int, secure bool) *models.DeviceIdentity {
	scheme := "http"
	if secure {
		scheme = "https"
	}

	for _, v := range variants {
		url := fmt.Sprintf("%s://%s:%d%s%s", scheme, address, port, DeviceInfoPath, v.query)

		status, body, err := p.Exchange(ctx, http.MethodGet, url, nil, v.accept)
		if err != nil {
			p.logger.Debug("probe transport failure", zap.String("address", address), zap.Error(err))
			return nil
		}
		if status < 200 || status >= 300 {
			continue
		}

		if identity := ParseIdentity(body); identity != nil {
			p.logger.Debug("probe identified device",
				zap.String("address", address),
				zap.String("device_name", identity.DeviceName),
				zap.String("model", identity.Model),
				zap.String("source", string(identity.Source)),
			)
			return identity
		}
	}
	return nil
}

// requestURI strips scheme and host so the digest uri parameter matches
// what the server hashes.
func requestURI(rawURL string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(rawURL) > len(prefix) && rawURL[:len(prefix)] == prefix {
			rest := rawURL[len(prefix):]
			for i := 0; i < len(rest); i++ {
				if rest[i] == '/' {
					return rest[i:]
				}
			}
			return "/"
		}
	}
	return rawURL
}
