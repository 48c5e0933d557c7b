package tls

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
)

// activeConfigFile is the last successfully applied Config, stored at the
// root of the persistence directory (spec.md §4.1).
const activeConfigFile = "active.json"

// FileStore is the Persistence Layer (spec.md §4.1): a flat directory of
// keypairs, registration locations, saved CSRs, certificate chains, and
// the last-applied configuration. It is the adapted descendant of the
// teacher's per-domain-directory fileStorage — same mutex-guarded
// os.MkdirAll/WriteFile/ReadFile idiom, different (flat, prefixed)
// filename scheme, because spec.md's on-disk layout is keyed by
// accountDbId rather than by domain.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the persistence directory if needed and returns a
// FileStore rooted at it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("persistence directory path cannot be empty")
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"path": baseDir},
			err,
		)
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.baseDir, name)
}

// Exists reports whether a named file is present in the store.
func (fs *FileStore) Exists(name string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.path(name))
	return err == nil
}

// Read returns the raw bytes of a named file, wrapping any failure as a
// FileIO error (spec.md §7).
func (fs *FileStore) Read(name string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.path(name))
	if err != nil {
		return nil, acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": name},
			err,
		)
	}
	return data, nil
}

// Write stores raw bytes to a named file. Per spec.md §4.1, a failed
// write is treated as potentially lossy: the caller must not claim
// success, which is exactly what the returned error communicates.
func (fs *FileStore) Write(name string, data []byte, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.WriteFile(fs.path(name), data, mode); err != nil {
		return acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": name},
			err,
		)
	}
	return nil
}

// WriteAtomic writes via a temp file plus rename, so a crash mid-write
// never leaves the named file half-written. Used for active.json, the
// one file every restart depends on (see SPEC_FULL.md §C).
func (fs *FileStore) WriteAtomic(name string, data []byte, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmpPath := fs.path(name) + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": name},
			err,
		)
	}
	if err := os.Rename(tmpPath, fs.path(name)); err != nil {
		_ = os.Remove(tmpPath)
		return acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": name},
			err,
		)
	}
	return nil
}

// Remove deletes a named file; a missing file is not an error.
func (fs *FileStore) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path(name)); err != nil && !os.IsNotExist(err) {
		return acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": name},
			err,
		)
	}
	return nil
}

// Filename helpers for the fixed naming convention in spec.md §4.1.

func accountKeypairFile(accountDbId string) string {
	return accountDbId + "-account-keypair.pem"
}

func accountLocationFile(accountDbId string) string {
	return accountDbId + "-accountLocation.txt"
}

func acceptedTermsFile(accountDbId string) string {
	return accountDbId + "-acceptedTermsLocation.txt"
}

func certKeypairFile(accountDbId, certID string) string {
	return accountDbId + "-" + certID + "-keypair.pem"
}

func certChainFile(accountDbId, certID string) string {
	return accountDbId + "-" + certID + "-certchain.pem"
}

func certCSRFile(accountDbId, certID string) string {
	return accountDbId + "-" + certID + "-cert-request.csr"
}

// LoadActiveConfig returns the last successfully applied configuration, or
// ok=false if active.json does not exist.
func (fs *FileStore) LoadActiveConfig() (cfg Config, ok bool, err error) {
	if !fs.Exists(activeConfigFile) {
		return Config{}, false, nil
	}

	data, err := fs.Read(activeConfigFile)
	if err != nil {
		return Config{}, false, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEFileIO,
			map[string]interface{}{"file": activeConfigFile},
			err,
		)
	}

	return cfg, true, nil
}

// SaveActiveConfig persists the applied configuration (spec.md §4.6 step 7).
func (fs *FileStore) SaveActiveConfig(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return acmeerrors.NewACMEError(acmeerrors.ErrCodeACMEFileIO, nil, err)
	}
	return fs.WriteAtomic(activeConfigFile, data, 0o644)
}

// EnsureAccountKeypair reads the account keypair, creating and persisting
// a fresh one if none exists yet (spec.md §4.5 "ensure account keypair").
func (fs *FileStore) EnsureAccountKeypair(accountDbId string) (*rsa.PrivateKey, error) {
	name := accountKeypairFile(accountDbId)

	if fs.Exists(name) {
		data, err := fs.Read(name)
		if err != nil {
			return nil, err
		}
		key, err := parsePrivateKeyPEM(data)
		if err != nil {
			return nil, acmeerrors.NewACMEError(
				acmeerrors.ErrCodeACMEFileIO,
				map[string]interface{}{"file": name},
				err,
			)
		}
		return key, nil
	}

	key, err := generateRSAKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account keypair: %w", err)
	}
	if err := fs.Write(name, encodePrivateKeyPEM(key), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// LoadCertPair loads the cached keypair and chain for a certificate.
// Per spec.md §4.1, the pair is considered present iff both files exist
// and parse cleanly; any other state (missing file, parse failure,
// mismatched pair) is reported as simply absent, not as an error, so
// callers fall through to fresh issuance.
func (fs *FileStore) LoadCertPair(accountDbId, certID string) (key *rsa.PrivateKey, chain []*x509.Certificate, present bool) {
	keyName := certKeypairFile(accountDbId, certID)
	chainName := certChainFile(accountDbId, certID)

	if !fs.Exists(keyName) || !fs.Exists(chainName) {
		return nil, nil, false
	}

	keyData, err := fs.Read(keyName)
	if err != nil {
		return nil, nil, false
	}
	chainData, err := fs.Read(chainName)
	if err != nil {
		return nil, nil, false
	}

	key, err = parsePrivateKeyPEM(keyData)
	if err != nil {
		return nil, nil, false
	}
	chain, err = parseCertChainPEM(chainData)
	if err != nil {
		return nil, nil, false
	}
	if len(chain) == 0 || !key.PublicKey.Equal(chain[0].PublicKey) {
		return nil, nil, false
	}

	return key, chain, true
}

// SaveCertChain writes the leaf+intermediates chain PEM for a certificate.
func (fs *FileStore) SaveCertChain(accountDbId, certID string, chain []*x509.Certificate) error {
	return fs.Write(certChainFile(accountDbId, certID), encodeCertChainPEM(chain), 0o644)
}

// EnsureCertKeypair reads one certificate's keypair, creating and
// persisting a fresh one if none exists yet. Unlike EnsureAccountKeypair,
// an unreadable or unparsable keypair file is replaced with a fresh key
// rather than reported as an error.
func (fs *FileStore) EnsureCertKeypair(accountDbId, certID string) (*rsa.PrivateKey, error) {
	name := certKeypairFile(accountDbId, certID)

	if fs.Exists(name) {
		data, err := fs.Read(name)
		if err == nil {
			if key, err := parsePrivateKeyPEM(data); err == nil {
				return key, nil
			}
		}
	}

	key, err := generateRSAKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate keypair: %w", err)
	}
	if err := fs.Write(name, encodePrivateKeyPEM(key), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// SaveCSR persists the last CSR for renewal auditing (spec.md §4.1).
func (fs *FileStore) SaveCSR(accountDbId, certID string, der []byte) error {
	return fs.Write(certCSRFile(accountDbId, certID), encodeCSRPEM(der), 0o644)
}

// LoadAccountLocation returns the registered account URI, if any.
func (fs *FileStore) LoadAccountLocation(accountDbId string) (string, bool, error) {
	name := accountLocationFile(accountDbId)
	if !fs.Exists(name) {
		return "", false, nil
	}
	data, err := fs.Read(name)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// SaveAccountLocation persists the CA-assigned account URI.
func (fs *FileStore) SaveAccountLocation(accountDbId, location string) error {
	return fs.Write(accountLocationFile(accountDbId), []byte(location), 0o644)
}

// LoadAcceptedTerms returns the last agreement URI accepted for this account.
func (fs *FileStore) LoadAcceptedTerms(accountDbId string) (string, bool, error) {
	name := acceptedTermsFile(accountDbId)
	if !fs.Exists(name) {
		return "", false, nil
	}
	data, err := fs.Read(name)
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// SaveAcceptedTerms persists the agreement URI accepted for this account.
func (fs *FileStore) SaveAcceptedTerms(accountDbId, agreementURL string) error {
	return fs.Write(acceptedTermsFile(accountDbId), []byte(agreementURL), 0o644)
}
