package tls

import (
	"github.com/google/wire"

	"github.com/kaelbrook/certsentry/internal/config"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// ProviderSet wires the ACME lifecycle engine bottom-up: Persistence
// Layer and Dynamic Certificate Store, then the Challenge, Certificate,
// and Account managers, then the Config Reconciler, then the Public
// Controller exposed as Manager (spec.md §2 dependency order).
var ProviderSet = wire.NewSet(
	NewFileStoreFromConfig,
	NewDynamicCertStore,
	newChallengeManagerFromConfig,
	newCertificateManagerFromConfig,
	newAccountManagerFromConfig,
	newConfigReconcilerFromConfig,
	NewTLSManager,
)

// NewFileStoreFromConfig builds the Persistence Layer rooted at the
// configured cache directory.
func NewFileStoreFromConfig(cfg *config.Config) (*FileStore, error) {
	baseDir := cfg.TLS.CacheDir
	if baseDir == "" {
		baseDir = "./certs"
	}
	return NewFileStore(baseDir)
}

func newChallengeManagerFromConfig(dcs *DynamicCertStore, logger observability.Logger) *challengeManager {
	return newChallengeManager(dcs, logger)
}

func newCertificateManagerFromConfig(
	fs *FileStore,
	dcs *DynamicCertStore,
	cm *challengeManager,
	logger observability.Logger,
	metrics observability.MetricsCollector,
) *certificateManager {
	return newCertificateManager(fs, dcs, cm, logger, metrics)
}

func newAccountManagerFromConfig(fs *FileStore, certM *certificateManager, logger observability.Logger) *accountManager {
	return newAccountManager(fs, certM, logger)
}

func newConfigReconcilerFromConfig(fs *FileStore, dcs *DynamicCertStore, am *accountManager, logger observability.Logger) *configReconciler {
	return newConfigReconciler(fs, dcs, am, logger)
}

// NewTLSManager builds the Public Controller, the Manager implementation
// consumed by internal/server/providers.go's WithTLS.
func NewTLSManager(fs *FileStore, dcs *DynamicCertStore, cr *configReconciler, logger observability.Logger) Manager {
	return newController(fs, dcs, cr, logger)
}

// ToEngineConfig converts the application's declarative config.TLSConfig
// account map into the engine's own Config (spec.md §6.1), mirroring the
// teacher's NewTLSManager conversion of config.TLSConfig into its own
// TLSConfig shape.
func ToEngineConfig(tlsCfg config.TLSConfig) Config {
	renewalCheckTime := tlsCfg.RenewalCheckTime
	if renewalCheckTime == "" {
		renewalCheckTime = "03:00:00"
	}

	accounts := make(map[string]Account, len(tlsCfg.Accounts))
	for acctID, acct := range tlsCfg.Accounts {
		certs := make(map[string]Certificate, len(acct.Certificates))
		for certID, cert := range acct.Certificates {
			certs[certID] = Certificate{
				Enabled:      cert.Enabled,
				DefaultCert:  cert.DefaultCert,
				Organization: cert.Organization,
				Hostnames:    cert.Hostnames,
			}
		}

		accounts[acctID] = Account{
			Enabled:              acct.Enabled,
			ProviderURL:          acct.ProviderURL,
			AcceptedAgreementURL: acct.AcceptedAgreementURL,
			ContactURIs:          acct.ContactURIs,
			MinimumValidityDays:  acct.MinimumValidityDays,
			Certificates:         certs,
		}
	}

	return Config{
		RenewalCheckTime: renewalCheckTime,
		Accounts:         accounts,
	}
}
