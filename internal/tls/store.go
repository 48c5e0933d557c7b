package tls

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kaelbrook/certsentry/internal/observability"
)

// CertEntry is one installed (key, chain) pair owned by the Dynamic
// Certificate Store (spec.md §3). Chain is ordered leaf-first.
type CertEntry struct {
	ID          string
	DefaultFlag bool
	PrivateKey  *rsa.PrivateKey
	Chain       []*x509.Certificate
}

func (e *CertEntry) leaf() *x509.Certificate {
	if len(e.Chain) == 0 {
		return nil
	}
	return e.Chain[0]
}

// tlsCertificate converts the entry into a crypto/tls.Certificate ready to
// be handed back from a GetCertificate callback.
func (e *CertEntry) tlsCertificate() (*tls.Certificate, error) {
	if len(e.Chain) == 0 {
		return nil, fmt.Errorf("certificate entry %s has an empty chain", e.ID)
	}

	raw := make([][]byte, len(e.Chain))
	for i, cert := range e.Chain {
		raw[i] = cert.Raw
	}

	return &tls.Certificate{
		Certificate: raw,
		PrivateKey:  e.PrivateKey,
		Leaf:        e.Chain[0],
	}, nil
}

// KeystoreSnapshot is the immutable, atomically-published container the
// TLS engine's key manager hands to the surrounding TLS stack on every
// handshake (spec.md §3/§6.3). Once built it is never mutated.
type KeystoreSnapshot struct {
	byHostname map[string]*tls.Certificate
	defaultID  string
	defaultVal *tls.Certificate
}

// lookup resolves a handshake's SNI hostname to a certificate, falling
// back to the elected default alias, matching spec.md §6.3's selector
// contract.
func (s *KeystoreSnapshot) lookup(serverName string) (*tls.Certificate, bool) {
	if s == nil {
		return nil, false
	}

	if serverName != "" {
		if cert, ok := s.byHostname[strings.ToLower(serverName)]; ok {
			return cert, true
		}
	}

	if s.defaultVal != nil {
		return s.defaultVal, true
	}

	return nil, false
}

// DynamicCertStore is the DCS (spec.md §4.2): the authoritative,
// thread-safe set of active CertEntry values, republished as an atomic
// KeystoreSnapshot on every mutation. Put/Remove/SetIdOfDefaultAlias are
// mutually serialized by mu; readers (GetCertificate) never block on it —
// they read the published pointer, so a concurrent handshake always sees
// either the pre- or post-mutation snapshot in full, never a torn one
// (spec.md §8 property 4).
type DynamicCertStore struct {
	mu        sync.Mutex
	entries   map[string]*CertEntry
	defaultID string

	snapshot atomic.Pointer[KeystoreSnapshot]
	logger   observability.Logger
}

// NewDynamicCertStore returns an empty DCS with an empty published snapshot.
func NewDynamicCertStore(logger observability.Logger) *DynamicCertStore {
	dcs := &DynamicCertStore{
		entries: make(map[string]*CertEntry),
		logger:  logger,
	}
	dcs.snapshot.Store(&KeystoreSnapshot{byHostname: map[string]*tls.Certificate{}})
	return dcs
}

// Put installs or replaces an entry (spec.md §4.2). Logs "Installing" for
// a new id, "Replacing" for an existing one, exactly as spec.md specifies.
func (dcs *DynamicCertStore) Put(id string, defaultFlag bool, key *rsa.PrivateKey, chain []*x509.Certificate) {
	dcs.mu.Lock()
	defer dcs.mu.Unlock()

	entry := &CertEntry{ID: id, DefaultFlag: defaultFlag, PrivateKey: key, Chain: chain}

	if _, exists := dcs.entries[id]; exists {
		dcs.log().Info(bgCtx(), "Replacing", observability.String("id", id))
	} else {
		dcs.log().Info(bgCtx(), "Installing", observability.String("id", id))
	}

	dcs.entries[id] = entry
	dcs.rebuildLocked()
}

// Remove deletes an entry if present (spec.md §4.2).
func (dcs *DynamicCertStore) Remove(id string) {
	dcs.mu.Lock()
	defer dcs.mu.Unlock()

	if _, exists := dcs.entries[id]; !exists {
		dcs.log().Info(bgCtx(), "Nothing to remove", observability.String("id", id))
		return
	}

	dcs.log().Info(bgCtx(), "Removing", observability.String("id", id))
	delete(dcs.entries, id)
	dcs.rebuildLocked()
}

// Get is a read-only lookup by id.
func (dcs *DynamicCertStore) Get(id string) (*CertEntry, bool) {
	dcs.mu.Lock()
	defer dcs.mu.Unlock()

	entry, ok := dcs.entries[id]
	return entry, ok
}

// SetIdOfDefaultAlias assigns which entry's alias is elected as the
// fallback default, or clears it when id is nil.
func (dcs *DynamicCertStore) SetIdOfDefaultAlias(id *string) {
	dcs.mu.Lock()
	defer dcs.mu.Unlock()

	if id == nil {
		dcs.defaultID = ""
	} else {
		dcs.defaultID = *id
	}
	dcs.rebuildLocked()
}

// rebuildLocked constructs a fresh snapshot from the current entry set in
// deterministic (sorted-by-id) order and installs it with a single atomic
// pointer swap. Errors constructing an individual entry's tls.Certificate
// are logged and the new snapshot is discarded, so the prior snapshot
// stays published in full (spec.md §4.2 error handling).
func (dcs *DynamicCertStore) rebuildLocked() {
	ids := make([]string, 0, len(dcs.entries))
	for id := range dcs.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	next := &KeystoreSnapshot{byHostname: make(map[string]*tls.Certificate, len(ids))}

	failed := false

	for _, id := range ids {
		entry := dcs.entries[id]
		cert, err := entry.tlsCertificate()
		if err != nil {
			dcs.log().Error(bgCtx(), err, "Failed to build certificate for snapshot",
				observability.String("id", id))
			failed = true
			continue
		}

		for _, host := range sanHostnames(entry.leaf()) {
			next.byHostname[strings.ToLower(host)] = cert
		}

		if id == dcs.defaultID {
			next.defaultID = id
			next.defaultVal = cert
		}
	}

	if failed {
		return
	}

	dcs.snapshot.Store(next)
}

// GetCertificate is the key-manager entrypoint consumed on every TLS
// handshake (spec.md §6.3). It never takes mu: it reads the atomically
// published snapshot.
func (dcs *DynamicCertStore) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	snap := dcs.snapshot.Load()
	cert, ok := snap.lookup(hello.ServerName)
	if !ok {
		return nil, fmt.Errorf("no certificate available for %q and no default is set", hello.ServerName)
	}
	return cert, nil
}

// HasDefault reports whether the current snapshot has an elected default.
func (dcs *DynamicCertStore) HasDefault() bool {
	snap := dcs.snapshot.Load()
	return snap.defaultVal != nil
}

func (dcs *DynamicCertStore) log() observability.Logger {
	if dcs.logger == nil {
		return observability.Default()
	}
	return dcs.logger
}

func sanHostnames(leaf *x509.Certificate) []string {
	if leaf == nil {
		return nil
	}
	if len(leaf.DNSNames) > 0 {
		return leaf.DNSNames
	}
	if leaf.Subject.CommonName != "" {
		return []string{leaf.Subject.CommonName}
	}
	return nil
}
