// Package auth implements the Basic and Digest authentication primitives:
// Basic credential encoding/checking, and RFC 2617 Digest challenge
// generation and response validation with qop=auth. It builds on the
// standard library's crypto/md5 and encoding/base64 rather than
// reimplementing either.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// CheckBasic reports whether payload (the base64 portion of an
// Authorization: Basic header, as retained in request.Request.AuthPayload)
// matches username:password. A length mismatch is an immediate reject.
func CheckBasic(payload, username, password string) bool {
	want := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	if len(want) != len(payload) {
		return false
	}
	return want == payload
}

// EncodeBasic formats the base64 payload for Authorization: Basic
// <payload>, the inverse of CheckBasic, used by a client or test harness
// constructing a request.
func EncodeBasic(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// randomMD5 generates a random 32-hex-digit token suitable for use as a
// Digest nonce or opaque value.
func randomMD5() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return md5Hex(string(buf[:]))
}

// HA1 computes the Digest HA1 value MD5(username:realm:password), matching
// generateDigestHash's non-passwordIsHash branch.
func HA1(username, password, realm string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}

// DigestChallenge formats the WWW-Authenticate challenge value (without
// the leading "Digest " scheme token), matching
// requestDigestAuthentication: realm, qop=auth, a fresh nonce, and a fresh
// opaque.
func DigestChallenge(realm string) string {
	return `realm="` + realm + `", qop="auth", nonce="` + randomMD5() + `", opaque="` + randomMD5() + `"`
}

// DigestParams holds the parsed fields of an Authorization: Digest header,
// mirroring the pRealm/pNonce/pUri/pResp/pQop/pNc/pCn locals in
// checkDigestAuthentication.
type DigestParams struct {
	Username string
	Realm    string
	Nonce    string
	Opaque   string
	URI      string
	Response string
	QOP      string
	NC       string
	CNonce   string
}

// ParseDigest parses the comma-separated key=value (optionally quoted)
// pairs of an Authorization: Digest payload.
func ParseDigest(payload string) DigestParams {
	var p DigestParams
	for _, part := range strings.Split(payload, ",") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		value := strings.Trim(part[eq+1:], `"`)
		switch key {
		case "username":
			p.Username = value
		case "realm":
			p.Realm = value
		case "nonce":
			p.Nonce = value
		case "opaque":
			p.Opaque = value
		case "uri":
			p.URI = value
		case "response":
			p.Response = value
		case "qop":
			p.QOP = value
		case "nc":
			p.NC = value
		case "cnonce":
			p.CNonce = value
		}
	}
	return p
}

// CheckDigest validates a parsed Digest Authorization against the expected
// identity: username, and any of realm/nonce/opaque/uri the caller pins,
// followed by the RFC 2617 qop=auth response computation:
//
//	HA1 = passwordIsHash ? password : MD5(username:realm:password)
//	HA2 = MD5(method:uri)
//	response = MD5(HA1:nonce:nc:cnonce:qop:HA2)
//
// When passwordIsHash is true, password is already the HA1 hash rather
// than a plaintext password, so the plaintext is never stored.
func CheckDigest(p DigestParams, method, username, realm, password string, passwordIsHash bool, nonce, opaque, uri string) bool {
	if p.Username != username {
		return false
	}
	if realm != "" && p.Realm != realm {
		return false
	}
	if nonce != "" && p.Nonce != nonce {
		return false
	}
	if opaque != "" && p.Opaque != opaque {
		return false
	}
	if uri != "" && p.URI != uri {
		return false
	}

	// ha1Hex is the HA1 value as a hex digest either way: computed fresh
	// from the plaintext password, or taken as-is when the caller already
	// stores the HA1 hash instead of the password (passwordIsHash).
	ha1Hex := md5Hex(username + ":" + p.Realm + ":" + password)
	if passwordIsHash {
		ha1Hex = password
	}
	ha2Hex := md5Hex(method + ":" + p.URI)

	response := ha1Hex + ":" + p.Nonce + ":" + p.NC + ":" + p.CNonce + ":" + p.QOP + ":" + ha2Hex
	return md5Hex(response) == p.Response
}
