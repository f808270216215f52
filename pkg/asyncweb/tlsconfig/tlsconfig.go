// Package tlsconfig builds the *tls.Config for the server's optional TLS
// listener: min/max version, cipher suites, ALPN, and a choice between a
// manual certificate/key pair or automatic Let's Encrypt issuance through
// golang.org/x/crypto/acme/autocert.
package tlsconfig

import (
	"crypto/tls"
	"errors"

	"golang.org/x/crypto/acme/autocert"
)

// defaultCipherSuites restricts TLS 1.2 negotiation to suites with
// forward secrecy. TLS 1.3 suites are not configurable in crypto/tls and
// are not listed here.
var defaultCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// Config builds a *tls.Config from one of two certificate sources and a
// handful of tls.Config knobs worth exposing.
type Config struct {
	// AutoCert, if true, builds the config around an autocert.Manager
	// (Let's Encrypt) instead of a manual certificate pair.
	AutoCert bool
	Domains  []string
	CacheDir string

	CertFile string
	KeyFile  string

	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16
	NextProtos   []string

	manager *autocert.Manager
}

// NewConfig returns a Config with secure defaults: TLS 1.2 minimum,
// forward-secret cipher suites, HTTP/1.1 ALPN (this server speaks
// HTTP/1.x only).
func NewConfig() *Config {
	return &Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: defaultCipherSuites,
		NextProtos:   []string{"http/1.1"},
	}
}

// WithAutoCert enables Let's Encrypt certificate management for the given
// domains, caching issued certificates under cacheDir.
func (c *Config) WithAutoCert(cacheDir string, domains ...string) *Config {
	c.AutoCert = true
	c.CacheDir = cacheDir
	c.Domains = domains
	return c
}

// WithManualCert configures a fixed certificate/key pair.
func (c *Config) WithManualCert(certFile, keyFile string) *Config {
	c.AutoCert = false
	c.CertFile = certFile
	c.KeyFile = keyFile
	return c
}

// Build produces the *tls.Config the transport listener wraps around its
// net.Listener.
func (c *Config) Build() (*tls.Config, error) {
	if c.AutoCert {
		return c.buildAutoCert()
	}
	return c.buildManualCert()
}

func (c *Config) buildAutoCert() (*tls.Config, error) {
	if len(c.Domains) == 0 {
		return nil, errors.New("tlsconfig: at least one domain is required for autocert")
	}

	c.manager = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(c.Domains...),
	}
	if c.CacheDir != "" {
		c.manager.Cache = autocert.DirCache(c.CacheDir)
	}

	cfg := c.manager.TLSConfig()
	cfg.MinVersion = c.MinVersion
	cfg.MaxVersion = c.MaxVersion
	cfg.CipherSuites = c.CipherSuites
	// Keep the tls-alpn-01 challenge protocol, but advertise only the
	// configured application protocols in place of autocert's default h2.
	cfg.NextProtos = append(append([]string{}, c.NextProtos...), "acme-tls/1")
	return cfg, nil
}

func (c *Config) buildManualCert() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, errors.New("tlsconfig: certificate and key files are required")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   c.MinVersion,
		MaxVersion:   c.MaxVersion,
		CipherSuites: c.CipherSuites,
		NextProtos:   c.NextProtos,
	}, nil
}

// Manager returns the underlying autocert.Manager once Build has run with
// AutoCert set, or nil otherwise. TLSConfig()'s GetCertificate already
// answers the tls-alpn-01 challenge autocert prefers, so no separate
// plain-HTTP challenge listener is needed.
func (c *Config) Manager() *autocert.Manager {
	return c.manager
}
