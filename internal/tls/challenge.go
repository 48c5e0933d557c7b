package tls

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// challengeEntryID is the DCS id shared across every attempt for a given
// domain; only one in-flight challenge per domain is assumed, the caller
// orders domains (spec.md §4.3).
func challengeEntryID(domain string) string {
	return "letsencrypt-challenge-" + domain
}

// supportedCombination reports whether every challenge in a combination is
// one this engine can satisfy (spec.md §1: only TLS-SNI-01/02 are in
// scope; HTTP-01/DNS-01 are non-goals).
func supportedCombination(c Combination) bool {
	if len(c.Challenges) == 0 {
		return false
	}
	for _, ch := range c.Challenges {
		switch ch.Type {
		case ChallengeTLSSNI01, ChallengeTLSSNI02:
		default:
			return false
		}
	}
	return true
}

// getAuthorizationFunc is the account-level authorization fetcher the
// Challenge Manager is handed (spec.md §4.3 inputs), rather than a
// reference back to the Account Manager itself — per spec.md §9's
// "eliminate cyclic references" note.
type getAuthorizationFunc func(ctx context.Context, domain string) (*Authorization, error)

// challengeManager performs a single domain authorization: selects a
// supported challenge, installs a short-lived challenge certificate in
// the DCS, triggers the CA, polls for terminal status, cleans up
// (spec.md §4.3).
type challengeManager struct {
	dcs    *DynamicCertStore
	logger observability.Logger
}

func newChallengeManager(dcs *DynamicCertStore, logger observability.Logger) *challengeManager {
	return &challengeManager{dcs: dcs, logger: logger}
}

// Authorize drives one domain's authorization to completion or failure.
// session is the caller's already-open CA session (spec.md §4.5 opens one
// per account; the Challenge Manager has no account of its own, per
// spec.md §9's anti-cyclic-reference note).
func (cm *challengeManager) Authorize(ctx context.Context, domain string, session caSession, getAuthorization getAuthorizationFunc) error {
	auth, err := getAuthorization(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to fetch authorization for %s: %w", domain, err)
	}

	if auth.Status == StatusValid {
		return nil
	}

	var combination *Combination
	for _, c := range auth.Combinations {
		if supportedCombination(c) {
			combination = &c
			break
		}
	}
	if combination == nil {
		return acmeerrors.NewACMEError(acmeerrors.ErrCodeACMEChallengeFailed,
			map[string]interface{}{"domain": domain, "reason": "no supported challenge combination offered"}, nil)
	}

	entryID := challengeEntryID(domain)

	cm.logger.Info(ctx, "Authorizing domain", observability.String("domain", domain))

	for _, challenge := range combination.Challenges {
		if err := cm.attempt(ctx, domain, entryID, challenge, session); err != nil {
			return err
		}
	}

	return nil
}

func (cm *challengeManager) attempt(ctx context.Context, domain, entryID string, challenge Challenge, session caSession) error {
	key, err := generateRSAKey()
	if err != nil {
		return fmt.Errorf("failed to generate challenge keypair for %s: %w", domain, err)
	}

	leaf, err := buildChallengeCertificate(key, challenge)
	if err != nil {
		return fmt.Errorf("failed to build challenge certificate for %s: %w", domain, err)
	}

	cm.dcs.Put(entryID, false, key, []*x509.Certificate{leaf})
	defer cm.dcs.Remove(entryID)

	if err := session.TriggerChallenge(ctx, domain, challenge); err != nil {
		return fmt.Errorf("failed to trigger %s challenge for %s: %w", challenge.Type, domain, err)
	}

	status, err := FetchWithRetry(ctx, func(ctx context.Context) (*AuthorizationStatus, *RetryAfter, error) {
		polled, retry, err := session.PollChallenge(ctx, domain, challenge)
		if err != nil {
			return nil, nil, err
		}
		if retry != nil {
			return nil, retry, nil
		}
		if polled == StatusPending {
			return nil, nil, nil
		}
		return &polled, nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed polling %s challenge for %s: %w", challenge.Type, domain, err)
	}

	if *status != StatusValid {
		return acmeerrors.NewACMEError(acmeerrors.ErrCodeACMEChallengeFailed, map[string]interface{}{
			"domain":         domain,
			"challenge_type": string(challenge.Type),
			"status":         string(*status),
		}, nil)
	}

	return nil
}

// buildChallengeCertificate constructs the short-lived self-signed leaf
// the CA is expected to retrieve during an SNI challenge (spec.md §4.3
// step 4b): TLS-SNI-01 carries a single SAN derived from the challenge's
// subject; TLS-SNI-02 carries both subject and sanB. Any other challenge
// type is rejected before this point is reached.
func buildChallengeCertificate(key *rsa.PrivateKey, challenge Challenge) (*x509.Certificate, error) {
	var sans []string
	switch challenge.Type {
	case ChallengeTLSSNI01:
		sans = []string{challenge.Subject}
	case ChallengeTLSSNI02:
		sans = []string{challenge.Subject, challenge.SanB}
	default:
		return nil, fmt.Errorf("unsupported challenge type %q", challenge.Type)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge certificate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: sans[0]},
		DNSNames:     sans,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to self-sign challenge certificate: %w", err)
	}

	return x509.ParseCertificate(der)
}
