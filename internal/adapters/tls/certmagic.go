// Package tls serves the HTTP API over HTTPS with certificates obtained by
// CertMagic through Azure DNS-01 challenges.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/jobrunner/geoalgebra/internal/config"
)

// Manager obtains and renews certificates for the configured domains.
type Manager struct {
	domains []string
	magic   *certmagic.Config
	logger  *slog.Logger
}

// NewManager creates a certificate manager. The returned manager is nil
// when TLS is disabled.
func NewManager(cfg config.TLSConfig, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Domains) == 0 {
		return nil, errors.New("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return nil, errors.New("TLS enabled but no email specified")
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}
	magic := certmagic.NewDefault()

	ca := certmagic.LetsEncryptProductionCA
	if cfg.Staging {
		ca = certmagic.LetsEncryptStagingCA
	}
	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		CA:     ca,
		Email:  cfg.Email,
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: &azure.Provider{
					SubscriptionId:    cfg.DNS.SubscriptionID,
					ResourceGroupName: cfg.DNS.ResourceGroupName,
					// empty selects the system assigned managed identity
					ClientId: cfg.DNS.ClientID,
				},
			},
		},
	})
	magic.Issuers = []certmagic.Issuer{issuer}

	return &Manager{domains: cfg.Domains, magic: magic, logger: logger}, nil
}

// Obtain fetches certificates for all domains before serving starts.
func (m *Manager) Obtain(ctx context.Context) error {
	m.logger.Info("obtaining certificates", "domains", m.domains, "challenge", "dns-01")
	if err := m.magic.ManageSync(ctx, m.domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	m.logger.Info("certificates obtained")
	return nil
}

// TLSConfig returns a TLS configuration serving the managed certificates.
func (m *Manager) TLSConfig() *tls.Config {
	tc := m.magic.TLSConfig()
	tc.NextProtos = append([]string{"h2", "http/1.1"}, tc.NextProtos...)
	return tc
}

// Serve runs srv over TLS with the managed certificates.
func (m *Manager) Serve(srv *http.Server) error {
	srv.TLSConfig = m.TLSConfig()
	m.logger.Info("starting HTTPS server", "address", srv.Addr, "domains", m.domains)
	return srv.ListenAndServeTLS("", "")
}
