// Package digest implements the client side of HTTP Digest
// authentication (RFC 7616, including the RFC 2617 MD5 subset) as used
// by access-control terminals. It is pure computation: callers parse a
// WWW-Authenticate challenge once and build one Authorization header
// from it.
package digest

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Challenge holds the parameters of a server challenge parsed from a
// WWW-Authenticate header. Realm and Nonce are required for a usable
// response; the rest are optional.
type Challenge struct {
	Realm     string
	Nonce     string
	QOP       string
	Opaque    string
	Algorithm string
}

// Valid reports whether the challenge carries the fields needed to
// compute a response digest.
func (c Challenge) Valid() bool {
	return c.Realm != "" && c.Nonce != ""
}

// ParseChallenge extracts Digest parameters from a WWW-Authenticate
// header value. Both quoted and unquoted parameter values are accepted
// because terminal firmware is inconsistent about quoting. A header that
// is not a Digest challenge yields a zero Challenge.
func ParseChallenge(header string) Challenge {
	var ch Challenge

	trimmed := strings.TrimSpace(header)
	if len(trimmed) < len("Digest") || !strings.EqualFold(trimmed[:len("Digest")], "Digest") {
		return ch
	}

	for _, param := range splitParams(trimmed[len("Digest"):]) {
		key, value, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch key {
		case "realm":
			ch.Realm = value
		case "nonce":
			ch.Nonce = value
		case "qop":
			ch.QOP = value
		case "opaque":
			ch.Opaque = value
		case "algorithm":
			ch.Algorithm = value
		}
	}
	return ch
}

// splitParams splits a comma-separated parameter list, ignoring commas
// inside quoted values.
func splitParams(s string) []string {
	var (
		params   []string
		start    int
		inQuotes bool
	)
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				params = append(params, s[start:i])
				start = i + 1
			}
		}
	}
	params = append(params, s[start:])
	return params
}

// BuildAuthorization computes the Authorization header for one request.
// A malformed challenge (missing realm or nonce) still yields a header
// with empty fields; the server will reject it with a second 401 and the
// caller reports that as an authentication failure. This degraded path
// is deliberate: a bad challenge from quirky firmware must not crash a
// subnet sweep.
func BuildAuthorization(method, uri, username, password string, ch Challenge) string {
	return buildAuthorization(method, uri, username, password, ch, newCNonce())
}

func buildAuthorization(method, uri, username, password string, ch Challenge, cnonce string) string {
	const nc = "00000001"

	h := hasherFor(ch.Algorithm)

	ha1 := h(fmt.Sprintf("%s:%s:%s", username, ch.Realm, password))
	if strings.HasSuffix(strings.ToLower(ch.Algorithm), "-sess") {
		ha1 = h(fmt.Sprintf("%s:%s:%s", ha1, ch.Nonce, cnonce))
	}
	ha2 := h(fmt.Sprintf("%s:%s", method, uri))

	qop := selectQOP(ch.QOP)

	var response string
	if qop != "" {
		response = h(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, ch.Nonce, nc, cnonce, qop, ha2))
	} else {
		response = h(fmt.Sprintf("%s:%s:%s", ha1, ch.Nonce, ha2))
	}

	algorithm := ch.Algorithm
	if algorithm == "" {
		algorithm = "MD5"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm=%s, response="%s"`,
		username, ch.Realm, ch.Nonce, uri, algorithm, response)
	if ch.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, ch.Opaque)
	}
	if qop != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, qop, nc, cnonce)
	}
	return b.String()
}

// selectQOP picks a quality-of-protection value from the server's
// offered list. Only "auth" is supported; auth-int would require body
// hashing that no terminal in the field requests.
func selectQOP(offered string) string {
	for _, q := range strings.Split(offered, ",") {
		if strings.TrimSpace(q) == "auth" {
			return "auth"
		}
	}
	return ""
}

// hasherFor returns the hex-digest function for the challenge algorithm.
// Unknown algorithms fall back to MD5, which is what the oldest firmware
// expects when it omits the parameter entirely.
func hasherFor(algorithm string) func(string) string {
	switch strings.TrimSuffix(strings.ToUpper(algorithm), "-SESS") {
	case "SHA-256":
		return func(s string) string {
			sum := sha256.Sum256([]byte(s))
			return hex.EncodeToString(sum[:])
		}
	default:
		return func(s string) string {
			sum := md5.Sum([]byte(s))
			return hex.EncodeToString(sum[:])
		}
	}
}

// newCNonce generates a random client nonce.
func newCNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a zero cnonce
		// still produces a well-formed (if weaker) response.
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(buf)
}
