package tls

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
)

// Config is the top-level declarative certificate-lifecycle configuration
// (spec.md §6.1). It is immutable once adopted by the Public Controller;
// a reconfigure replaces it wholesale.
type Config struct {
	RenewalCheckTime string             `mapstructure:"renewalCheckTime" json:"renewalCheckTime"`
	Accounts         map[string]Account `mapstructure:"accounts" json:"accounts" validate:"dive"`
}

// Account is one CA account and every certificate it manages.
type Account struct {
	Enabled              bool                   `mapstructure:"enabled" json:"enabled"`
	ProviderURL          string                 `mapstructure:"providerUrl" json:"providerUrl"`
	AcceptedAgreementURL string                 `mapstructure:"acceptedAgreementUrl" json:"acceptedAgreementUrl"`
	ContactURIs          []string               `mapstructure:"contactURIs" json:"contactURIs"`
	MinimumValidityDays  int                    `mapstructure:"minimumValidityDays" json:"minimumValidityDays" validate:"gte=0"`
	Certificates         map[string]Certificate `mapstructure:"certificates" json:"certificates" validate:"dive"`
}

// Certificate describes one configured certificate's identity.
type Certificate struct {
	Enabled      bool     `mapstructure:"enabled" json:"enabled"`
	DefaultCert  bool     `mapstructure:"defaultCert" json:"defaultCert"`
	Organization string   `mapstructure:"organization" json:"organization"`
	Hostnames    []string `mapstructure:"hostnames" json:"hostnames" validate:"dive,acmehostname"`
}

// Equal reports whether two certificates describe the same desired state.
func (c Certificate) Equal(o Certificate) bool {
	return reflect.DeepEqual(c, o)
}

// EmptyConfig returns a valid, empty configuration, used when no on-disk
// active.json exists yet (spec.md §6.4 `emptyConf`).
func EmptyConfig() Config {
	return Config{
		RenewalCheckTime: "03:00:00",
		Accounts:         map[string]Account{},
	}
}

// AccountDbId derives the filename-safe, on-disk identity for an account
// (spec.md §3). Changing providerUrl changes the derived id, which is how
// a provider-URL change forces deregistration of the old on-disk identity.
func AccountDbId(accountID, providerURL string) string {
	return accountID + "-" + url.QueryEscape(providerURL)
}

// configValidator is built once, mirroring internal/config/loader.go's
// validator.New()-plus-custom-rules shape: struct tags carry the
// field-level invariants (gte=0, the acmehostname syntax rule), and a
// registered struct-level rule carries the cross-field invariants spec.md
// §4.6 step 1 requires ("every enabled certificate needs at least one
// hostname", "at most one default certificate across the whole effective
// configuration") that no combination of per-field tags can express.
var (
	configValidatorOnce sync.Once
	configValidatorInst *validator.Validate
)

func configValidator() *validator.Validate {
	configValidatorOnce.Do(func() {
		v := validator.New()
		// validator's built-in "hostname"/"fqdn" tags reject the leading
		// "*" a wildcard certificate's hostname entry requires, so the
		// syntax rule is registered as its own tag rather than reused.
		_ = v.RegisterValidation("acmehostname", validateACMEHostnameField)
		v.RegisterStructValidation(validateConfigInvariants, Config{})
		configValidatorInst = v
	})
	return configValidatorInst
}

// Validate enforces spec.md §4.6 step 1's invariants via
// go-playground/validator/v10, the same library internal/config/loader.go
// uses for this concern.
func (c Config) Validate() error {
	if err := configValidator().Struct(c); err != nil {
		return acmeerrors.NewACMEError(
			acmeerrors.ErrCodeACMEConfigInvalid,
			map[string]interface{}{"reason": err.Error()},
			err,
		)
	}
	return nil
}

// validateConfigInvariants is a struct-level rule (spec.md §4.6 step 1):
// every enabled certificate on an enabled account must declare at least
// one hostname, and at most one enabled certificate across the whole
// configuration may be marked default.
func validateConfigInvariants(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	defaults := 0

	for _, acct := range cfg.Accounts {
		if !acct.Enabled {
			continue
		}

		for _, cert := range acct.Certificates {
			if !cert.Enabled {
				continue
			}

			if len(cert.Hostnames) == 0 {
				sl.ReportError(cfg.Accounts, "Accounts", "Accounts", "hostnames_required", "")
			}

			if cert.DefaultCert {
				defaults++
			}
		}
	}

	if defaults > 1 {
		sl.ReportError(cfg.Accounts, "Accounts", "Accounts", "at_most_one_default", "")
	}
}

// validateACMEHostnameField backs the "acmehostname" tag: a minimal
// RFC 1035 label check (1-253 total characters, dot-separated labels of
// letters/digits/hyphens, no label starting or ending with a hyphen) with
// one ACME-specific exception, a lone "*" wildcard label.
func validateACMEHostnameField(fl validator.FieldLevel) bool {
	return isValidHostname(fl.Field().String())
}

func isValidHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}

	labels := strings.Split(host, ".")
	for _, label := range labels {
		if !isValidDNSLabel(label) {
			return false
		}
	}
	return true
}

func isValidDNSLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		case r == '*' && label == "*": // allow a lone wildcard label
		default:
			return false
		}
	}
	return true
}

// diffEntry is one triple from mapDiff: the key and its value in the old
// and new maps (nil when absent on that side).
type diffEntry[V any] struct {
	Key string
	Old *V
	New *V
}

// mapDiff yields one entry per key in old ∪ new and nothing more
// (spec.md §8 property 7, "diff totality").
func mapDiff[V any](old, new map[string]V) []diffEntry[V] {
	seen := make(map[string]bool, len(old)+len(new))
	entries := make([]diffEntry[V], 0, len(old)+len(new))

	addKey := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true

		entry := diffEntry[V]{Key: k}
		if v, ok := old[k]; ok {
			v := v
			entry.Old = &v
		}
		if v, ok := new[k]; ok {
			v := v
			entry.New = &v
		}
		entries = append(entries, entry)
	}

	for k := range old {
		addKey(k)
	}
	for k := range new {
		addKey(k)
	}

	return entries
}
