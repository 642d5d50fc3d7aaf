package digest

import (
	"strings"
	"testing"
)

func TestParseChallengeQuoted(t *testing.T) {
	header := `Digest realm="http-auth@example.org", qop="auth, auth-int", algorithm=SHA-256, ` +
		`nonce="7ypf/xlj9XXwfDPEoM4URrv/xwf94BcCAzFZH4GiTo0v", ` +
		`opaque="FQhe/qaU925kfnzjCev0ciny7QMkPqMAFRtzCUYo5tdS"`

	ch := ParseChallenge(header)
	if ch.Realm != "http-auth@example.org" {
		t.Errorf("Realm = %q, want %q", ch.Realm, "http-auth@example.org")
	}
	if ch.Nonce != "7ypf/xlj9XXwfDPEoM4URrv/xwf94BcCAzFZH4GiTo0v" {
		t.Errorf("Nonce = %q", ch.Nonce)
	}
	if ch.QOP != "auth, auth-int" {
		t.Errorf("QOP = %q, want %q", ch.QOP, "auth, auth-int")
	}
	if ch.Algorithm != "SHA-256" {
		t.Errorf("Algorithm = %q, want %q", ch.Algorithm, "SHA-256")
	}
	if !ch.Valid() {
		t.Error("Valid() = false, want true")
	}
}

func TestParseChallengeUnquoted(t *testing.T) {
	// Some firmware sends unquoted parameter values.
	ch := ParseChallenge(`Digest realm=device, nonce=abc123, qop=auth, algorithm=MD5`)
	if ch.Realm != "device" {
		t.Errorf("Realm = %q, want %q", ch.Realm, "device")
	}
	if ch.Nonce != "abc123" {
		t.Errorf("Nonce = %q, want %q", ch.Nonce, "abc123")
	}
	if ch.QOP != "auth" {
		t.Errorf("QOP = %q, want %q", ch.QOP, "auth")
	}
}

func TestParseChallengeNotDigest(t *testing.T) {
	ch := ParseChallenge(`Basic realm="device"`)
	if ch.Valid() {
		t.Errorf("ParseChallenge on Basic challenge = %+v, want invalid", ch)
	}
}

// TestBuildAuthorizationRFC7616Vector reproduces the SHA-256 example
// from RFC 7616 section 3.9.1 byte for byte.
func TestBuildAuthorizationRFC7616Vector(t *testing.T) {
	ch := Challenge{
		Realm:     "http-auth@example.org",
		Nonce:     "7ypf/xlj9XXwfDPEoM4URrv/xwf94BcCAzFZH4GiTo0v",
		QOP:       "auth, auth-int",
		Opaque:    "FQhe/qaU925kfnzjCev0ciny7QMkPqMAFRtzCUYo5tdS",
		Algorithm: "SHA-256",
	}
	cnonce := "f2/wE4q74E6zIJEtWaHKaf5wv/H5QzzpXusqGemxURZJ"

	header := buildAuthorization("GET", "/dir/index.html", "Mufasa", "Circle of Life", ch, cnonce)

	wantResponse := `response="753927fa0e85d155564e2e272a28d1802ca10daf4496794697cf8db5856cb6c1"`
	if !strings.Contains(header, wantResponse) {
		t.Errorf("header missing %s\ngot: %s", wantResponse, header)
	}
	for _, want := range []string{
		`username="Mufasa"`,
		`realm="http-auth@example.org"`,
		`uri="/dir/index.html"`,
		`algorithm=SHA-256`,
		`qop=auth`,
		`nc=00000001`,
		`cnonce="f2/wE4q74E6zIJEtWaHKaf5wv/H5QzzpXusqGemxURZJ"`,
		`opaque="FQhe/qaU925kfnzjCev0ciny7QMkPqMAFRtzCUYo5tdS"`,
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %s", want)
		}
	}
}

// TestBuildAuthorizationRFC2617Vector reproduces the classic MD5
// example from RFC 2617 section 3.5.
func TestBuildAuthorizationRFC2617Vector(t *testing.T) {
	ch := Challenge{
		Realm:  "testrealm@host.com",
		Nonce:  "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		QOP:    "auth,auth-int",
		Opaque: "5ccc069c403ebaf9f0171e9517f40e41",
	}

	header := buildAuthorization("GET", "/dir/index.html", "Mufasa", "Circle Of Life", ch, "0a4f113b")

	if want := `response="6629fae49393a05397450978507c4ef1"`; !strings.Contains(header, want) {
		t.Errorf("header missing %s\ngot: %s", want, header)
	}
	if !strings.Contains(header, "algorithm=MD5") {
		t.Error("empty challenge algorithm should fall back to MD5")
	}
}

func TestBuildAuthorizationNoQOP(t *testing.T) {
	// RFC 2069 compatibility mode: no qop means no nc/cnonce fields.
	ch := Challenge{Realm: "r", Nonce: "n"}
	header := buildAuthorization("GET", "/", "u", "p", ch, "ignored")

	if strings.Contains(header, "qop=") {
		t.Errorf("header carries qop without server offer: %s", header)
	}
	if strings.Contains(header, "cnonce=") {
		t.Errorf("header carries cnonce without qop: %s", header)
	}
}

func TestBuildAuthorizationSessionVariant(t *testing.T) {
	ch := Challenge{Realm: "r", Nonce: "n", QOP: "auth", Algorithm: "MD5-sess"}
	plain := Challenge{Realm: "r", Nonce: "n", QOP: "auth", Algorithm: "MD5"}

	sess := buildAuthorization("GET", "/", "u", "p", ch, "cn")
	base := buildAuthorization("GET", "/", "u", "p", plain, "cn")

	if sess == base {
		t.Error("MD5-sess produced the same response as MD5")
	}
	if !strings.Contains(sess, "algorithm=MD5-sess") {
		t.Errorf("header = %s, want algorithm=MD5-sess", sess)
	}
}

func TestBuildAuthorizationMalformedChallenge(t *testing.T) {
	// Missing realm and nonce: the header is still emitted with empty
	// fields so the caller observes a clean second 401 instead of a
	// crash mid-sweep.
	header := BuildAuthorization("GET", "/", "u", "p", Challenge{})

	if !strings.HasPrefix(header, "Digest ") {
		t.Errorf("header = %q, want Digest prefix", header)
	}
	if !strings.Contains(header, `realm=""`) {
		t.Errorf("header = %q, want empty realm", header)
	}
}

func TestSelectQOP(t *testing.T) {
	tests := []struct {
		offered string
		want    string
	}{
		{"auth", "auth"},
		{"auth, auth-int", "auth"},
		{"auth-int, auth", "auth"},
		{"auth-int", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := selectQOP(tt.offered); got != tt.want {
			t.Errorf("selectQOP(%q) = %q, want %q", tt.offered, got, tt.want)
		}
	}
}
