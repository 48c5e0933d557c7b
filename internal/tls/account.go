package tls

import (
	"context"
	"fmt"
	"sync"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// accountManager manages one CA account: account keypair, registration
// (create-or-bind), terms-of-service acceptance, contact URIs, and
// authorization cache; fans out to the Certificate Manager per
// certificate (spec.md §4.5).
type accountManager struct {
	fs     *FileStore
	certM  *certificateManager
	logger observability.Logger
}

func newAccountManager(fs *FileStore, certM *certificateManager, logger observability.Logger) *accountManager {
	return &accountManager{fs: fs, certM: certM, logger: logger}
}

// UpdateCached is the fast, disk-only pass (spec.md §4.5 updateCached).
func (am *accountManager) UpdateCached(accountKey string, oldAcct, newAcct *Account) error {
	newAbsentOrDisabled := newAcct == nil || !newAcct.Enabled

	dbIDChanged := false
	if oldAcct != nil && newAcct != nil {
		dbIDChanged = AccountDbId(accountKey, oldAcct.ProviderURL) != AccountDbId(accountKey, newAcct.ProviderURL)
	}

	var errs []error

	if newAbsentOrDisabled || dbIDChanged {
		if oldAcct != nil {
			oldDbID := AccountDbId(accountKey, oldAcct.ProviderURL)
			errs = append(errs, am.cachedPass(oldDbID, oldAcct.Certificates, nil)...)
		}
		if !newAbsentOrDisabled {
			newDbID := AccountDbId(accountKey, newAcct.ProviderURL)
			errs = append(errs, am.cachedPass(newDbID, nil, newAcct.Certificates)...)
		}
		return acmeerrors.NewAggregateError(fmt.Sprintf("account %s cached pass", accountKey), errs)
	}

	dbID := AccountDbId(accountKey, newAcct.ProviderURL)
	errs = am.cachedPass(dbID, oldAcct.Certificates, newAcct.Certificates)
	return acmeerrors.NewAggregateError(fmt.Sprintf("account %s cached pass", accountKey), errs)
}

// cachedPass runs CertM.UpdateCached for every certificate touched by the
// old/new diff, concurrently within the account (spec.md §5).
func (am *accountManager) cachedPass(dbID string, oldCerts, newCerts map[string]Certificate) []error {
	diffs := mapDiff(oldCerts, newCerts)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, d := range diffs {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := am.certM.UpdateCached(dbID, d.Key, d.New); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("for certificate %s: %w", d.Key, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errs
}

// UpdateOthers is the authoritative pass: registers or binds the account,
// reconciles its registration properties, and delegates to the
// Certificate Manager per certificate (spec.md §4.5 updateOthers).
func (am *accountManager) UpdateOthers(ctx context.Context, accountKey string, oldAcct, newAcct *Account) error {
	if newAcct == nil || !newAcct.Enabled {
		return nil
	}

	dbID := AccountDbId(accountKey, newAcct.ProviderURL)

	accountKeyPair, err := am.fs.EnsureAccountKeypair(dbID)
	if err != nil {
		return fmt.Errorf("account %s: %w", accountKey, err)
	}

	session, err := dialCASession(ctx, newAcct.ProviderURL, accountKeyPair)
	if err != nil {
		return fmt.Errorf("account %s: failed to open CA session: %w", accountKey, err)
	}

	reg, err := am.ensureRegistration(ctx, dbID, session, newAcct)
	if err != nil {
		return fmt.Errorf("account %s: %w", accountKey, err)
	}

	if err := am.reconcileRegistration(ctx, dbID, session, reg, newAcct); err != nil {
		return fmt.Errorf("account %s: %w", accountKey, err)
	}

	getAuthorization := am.memoizedAuthorizationFetcher(session)

	var oldCerts map[string]Certificate
	if oldAcct != nil {
		oldCerts = oldAcct.Certificates
	}
	diffs := mapDiff(oldCerts, newAcct.Certificates)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, d := range diffs {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			var oldC *Certificate
			if d.Old != nil {
				v := *d.Old
				oldC = &v
			}
			if err := am.certM.UpdateOthers(ctx, dbID, d.Key, oldC, d.New, newAcct.MinimumValidityDays, session, getAuthorization); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("for certificate %s: %w", d.Key, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return acmeerrors.NewAggregateError(fmt.Sprintf("account %s certificates", accountKey), errs)
}

// ensureRegistration binds the account's existing registration if its
// location was persisted on a previous run, or creates a new one,
// recovering locally from an AcmeConflict signal (spec.md §4.5, §7).
func (am *accountManager) ensureRegistration(ctx context.Context, dbID string, session caSession, newAcct *Account) (*Registration, error) {
	if location, ok, err := am.fs.LoadAccountLocation(dbID); err != nil {
		return nil, err
	} else if ok {
		return session.BindRegistration(ctx, location)
	}

	reg, err := session.Register(ctx, newAcct.ContactURIs)
	if err != nil {
		return nil, err
	}

	if err := am.fs.SaveAccountLocation(dbID, reg.Location); err != nil {
		return nil, err
	}

	return reg, nil
}

// reconcileRegistration commits an edit when the account's desired
// contacts or accepted-agreement URL have drifted from what was last
// persisted (spec.md §4.5).
func (am *accountManager) reconcileRegistration(ctx context.Context, dbID string, session caSession, reg *Registration, newAcct *Account) error {
	savedTerms, haveTerms, err := am.fs.LoadAcceptedTerms(dbID)
	if err != nil {
		return err
	}

	contactsDiffer := !stringSlicesEqual(reg.Contacts, newAcct.ContactURIs)
	termsDiffer := !haveTerms || savedTerms != newAcct.AcceptedAgreementURL

	if !contactsDiffer && !termsDiffer {
		return nil
	}

	if err := session.UpdateRegistration(ctx, reg.Location, newAcct.ContactURIs, newAcct.AcceptedAgreementURL); err != nil {
		return err
	}

	return am.fs.SaveAcceptedTerms(dbID, newAcct.AcceptedAgreementURL)
}

// memoizedAuthorizationFetcher returns a getAuthorization closure cached
// for the lifetime of one updateOthers invocation only (spec.md §4.5): on
// its first call it lists every authorization the CA holds for this
// account and primes the cache by domain in one round trip; cache hits
// are then served without contacting the CA again, and only a domain
// absent from that initial list falls through to FetchAuthorization,
// which itself requests a fresh authorization when the CA has none on
// file.
func (am *accountManager) memoizedAuthorizationFetcher(session caSession) getAuthorizationFunc {
	var mu sync.Mutex
	var primed bool
	cache := make(map[string]*Authorization)

	prime := func(ctx context.Context) error {
		mu.Lock()
		if primed {
			mu.Unlock()
			return nil
		}
		mu.Unlock()

		existing, err := session.ListAuthorizations(ctx)
		if err != nil {
			return err
		}

		mu.Lock()
		for _, auth := range existing {
			cache[auth.Domain] = auth
		}
		primed = true
		mu.Unlock()

		return nil
	}

	return func(ctx context.Context, domain string) (*Authorization, error) {
		if err := prime(ctx); err != nil {
			return nil, err
		}

		mu.Lock()
		if auth, ok := cache[domain]; ok {
			mu.Unlock()
			return auth, nil
		}
		mu.Unlock()

		auth, err := session.FetchAuthorization(ctx, domain)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		cache[domain] = auth
		mu.Unlock()

		return auth, nil
	}
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
