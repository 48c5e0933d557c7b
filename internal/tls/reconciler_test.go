package tls

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	later := nextOccurrence(now, "14:00:00")
	assert.Equal(t, time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC), later)

	earlier := nextOccurrence(now, "03:00:00")
	assert.Equal(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC), earlier)

	invalid := nextOccurrence(now, "garbage")
	assert.Equal(t, now.Add(24*time.Hour), invalid)
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, s, err := parseTimeOfDay("03:04:05")
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 4, m)
	assert.Equal(t, 5, s)

	_, _, _, err = parseTimeOfDay("not-a-time")
	assert.Error(t, err)
}

func TestConfigReconciler_Update_RejectsInvalidConfig(t *testing.T) {
	logger := newTestLogger()
	fs := newTestFileStore(t)
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)
	certM := newCertificateManager(fs, dcs, cm, logger, nil)
	am := newAccountManager(fs, certM, logger)
	cr := newConfigReconciler(fs, dcs, am, logger)

	bad := Config{Accounts: map[string]Account{
		"a": {Enabled: true, Certificates: map[string]Certificate{
			"c1": {Enabled: true, DefaultCert: true, Hostnames: []string{"example.com"}},
			"c2": {Enabled: true, DefaultCert: true, Hostnames: []string{"other.com"}},
		}},
	}}

	err := cr.Update(context.Background(), EmptyConfig(), bad)
	assert.Error(t, err)
}

func TestConfigReconciler_ApplyDefaultAlias(t *testing.T) {
	logger := newTestLogger()
	fs := newTestFileStore(t)
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)
	certM := newCertificateManager(fs, dcs, cm, logger, nil)
	am := newAccountManager(fs, certM, logger)
	cr := newConfigReconciler(fs, dcs, am, logger)

	key, err := generateRSAKey()
	require.NoError(t, err)
	leaf, err := selfSignedTestCert(key, "example.com")
	require.NoError(t, err)

	acctDbID := AccountDbId("acct", "https://ca.example.com/dir")
	dcs.Put(fullCertID(acctDbID, "primary"), true, key, []*x509.Certificate{leaf})

	conf := Config{Accounts: map[string]Account{
		"acct": {
			Enabled:     true,
			ProviderURL: "https://ca.example.com/dir",
			Certificates: map[string]Certificate{
				"primary": {Enabled: true, DefaultCert: true, Hostnames: []string{"example.com"}},
			},
		},
	}}

	cr.applyDefaultAlias(conf)
	assert.True(t, dcs.HasDefault())

	cr.applyDefaultAlias(EmptyConfig())
	assert.False(t, dcs.HasDefault())
}
