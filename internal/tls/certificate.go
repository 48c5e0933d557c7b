package tls

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// certificateManager manages one configured certificate: loads cached
// material, decides whether renewal is required, sequences per-domain
// authorizations via the Challenge Manager, builds a CSR, requests and
// downloads the chain, persists it, installs it in the DCS (spec.md §4.4).
type certificateManager struct {
	fs      *FileStore
	dcs     *DynamicCertStore
	cm      *challengeManager
	logger  observability.Logger
	metrics observability.MetricsCollector
}

func newCertificateManager(fs *FileStore, dcs *DynamicCertStore, cm *challengeManager, logger observability.Logger, metrics observability.MetricsCollector) *certificateManager {
	return &certificateManager{fs: fs, dcs: dcs, cm: cm, logger: logger, metrics: metrics}
}

func fullCertID(accountDbId, certID string) string {
	return accountDbId + "-" + certID
}

// UpdateCached is the fast, disk-only pass: no CA traffic (spec.md §4.4).
func (m *certificateManager) UpdateCached(accountDbId, certID string, newC *Certificate) error {
	fullID := fullCertID(accountDbId, certID)

	if newC == nil || !newC.Enabled {
		m.dcs.Remove(fullID)
		return nil
	}

	if _, ok := m.dcs.Get(fullID); ok {
		return nil
	}

	key, chain, present := m.fs.LoadCertPair(accountDbId, certID)
	if !present {
		return nil
	}

	m.dcs.Put(fullID, newC.DefaultCert, key, chain)
	return nil
}

// UpdateOthers is the authoritative pass: contacts the CA when the cached
// material is absent, stale, or due for renewal (spec.md §4.4).
func (m *certificateManager) UpdateOthers(
	ctx context.Context,
	accountDbId, certID string,
	oldC, newC *Certificate,
	minimumValidityDays int,
	session caSession,
	getAuthorization getAuthorizationFunc,
) error {
	if newC == nil || !newC.Enabled {
		return nil
	}

	fullID := fullCertID(accountDbId, certID)

	if oldC != nil && newC.Equal(*oldC) {
		if entry, ok := m.dcs.Get(fullID); ok {
			leaf := entry.leaf()
			now := time.Now()
			if leaf != nil {
				if now.Before(leaf.NotBefore) {
					return acmeerrors.NewACMEError(acmeerrors.ErrCodeACMEInvalidValidityWindow,
						map[string]interface{}{"certificate": fullID}, nil)
				}
				if leaf.NotAfter.Sub(now) >= time.Duration(minimumValidityDays)*24*time.Hour {
					return nil
				}
			}
		}
	}

	m.logger.Info(ctx, "Requesting certificate issuance",
		observability.String("certificate", fullID),
		observability.Any("hostnames", newC.Hostnames))

	for _, hostname := range newC.Hostnames {
		if err := m.cm.Authorize(ctx, hostname, session, getAuthorization); err != nil {
			return fmt.Errorf("for certificate %s, hostname %s: %w", certID, hostname, err)
		}
	}

	certKey, err := m.fs.EnsureCertKeypair(accountDbId, certID)
	if err != nil {
		return fmt.Errorf("for certificate %s: %w", certID, err)
	}

	csrTemplate := &x509.CertificateRequest{
		Subject:  pkix.Name{Organization: []string{newC.Organization}, CommonName: newC.Hostnames[0]},
		DNSNames: newC.Hostnames,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, csrTemplate, certKey)
	if err != nil {
		return fmt.Errorf("for certificate %s: failed to build CSR: %w", certID, err)
	}
	if err := m.fs.SaveCSR(accountDbId, certID, csrDER); err != nil {
		return fmt.Errorf("for certificate %s: %w", certID, err)
	}

	meta, err := FetchWithRetry(ctx, func(ctx context.Context) (*CertificateMeta, *RetryAfter, error) {
		return session.RequestCertificate(ctx, csrDER)
	})
	if err != nil {
		m.recordRenewal(newC.Hostnames, false)
		return fmt.Errorf("for certificate %s: failed to request certificate: %w", certID, err)
	}

	leaf, err := FetchWithRetry(ctx, func(ctx context.Context) (*x509.Certificate, *RetryAfter, error) {
		return session.DownloadLeaf(ctx, meta)
	})
	if err != nil {
		m.recordRenewal(newC.Hostnames, false)
		return fmt.Errorf("for certificate %s: failed to download leaf: %w", certID, err)
	}

	intermediates, err := FetchWithRetry(ctx, func(ctx context.Context) (*[]*x509.Certificate, *RetryAfter, error) {
		chain, retry, err := session.DownloadChain(ctx, meta)
		if chain == nil {
			return nil, retry, err
		}
		return &chain, retry, err
	})
	if err != nil {
		m.recordRenewal(newC.Hostnames, false)
		return fmt.Errorf("for certificate %s: failed to download chain: %w", certID, err)
	}

	fullChain := append([]*x509.Certificate{leaf}, (*intermediates)...)

	if err := m.fs.SaveCertChain(accountDbId, certID, fullChain); err != nil {
		m.recordRenewal(newC.Hostnames, false)
		return fmt.Errorf("for certificate %s: %w", certID, err)
	}

	m.dcs.Put(fullID, newC.DefaultCert, certKey, fullChain)
	m.recordRenewal(newC.Hostnames, true)

	return nil
}

func (m *certificateManager) recordRenewal(hostnames []string, success bool) {
	if m.metrics == nil || len(hostnames) == 0 {
		return
	}
	m.metrics.RecordCertificateRenewal(hostnames[0], success)
}
