package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "empty config is valid",
			config: EmptyConfig(),
		},
		{
			name: "single default certificate is valid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, DefaultCert: true, Hostnames: []string{"example.com"}},
				}},
			}},
		},
		{
			name: "two default certificates is invalid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, DefaultCert: true, Hostnames: []string{"example.com"}},
					"c2": {Enabled: true, DefaultCert: true, Hostnames: []string{"other.com"}},
				}},
			}},
			wantErr: true,
		},
		{
			name: "disabled certificate with two defaults is ignored",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, DefaultCert: true, Hostnames: []string{"example.com"}},
					"c2": {Enabled: false, DefaultCert: true, Hostnames: []string{"other.com"}},
				}},
			}},
		},
		{
			name: "empty hostnames is invalid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, Hostnames: []string{}},
				}},
			}},
			wantErr: true,
		},
		{
			name: "invalid hostname is invalid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, Hostnames: []string{"-bad.example.com"}},
				}},
			}},
			wantErr: true,
		},
		{
			name: "negative minimumValidityDays is invalid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, MinimumValidityDays: -1},
			}},
			wantErr: true,
		},
		{
			name: "wildcard hostname is valid",
			config: Config{Accounts: map[string]Account{
				"a": {Enabled: true, Certificates: map[string]Certificate{
					"c1": {Enabled: true, Hostnames: []string{"*.example.com"}},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccountDbId(t *testing.T) {
	a := AccountDbId("acct1", "https://ca.example.com/dir")
	b := AccountDbId("acct1", "https://ca.example.com/dir-v2")

	assert.NotEqual(t, a, b, "changing providerUrl must change the derived id")
	assert.Equal(t, a, AccountDbId("acct1", "https://ca.example.com/dir"))
}

func TestCertificate_Equal(t *testing.T) {
	c1 := Certificate{Enabled: true, Hostnames: []string{"example.com"}}
	c2 := Certificate{Enabled: true, Hostnames: []string{"example.com"}}
	c3 := Certificate{Enabled: true, Hostnames: []string{"other.com"}}

	assert.True(t, c1.Equal(c2))
	assert.False(t, c1.Equal(c3))
}

func TestMapDiff(t *testing.T) {
	old := map[string]int{"a": 1, "b": 2}
	new := map[string]int{"b": 3, "c": 4}

	entries := mapDiff(old, new)
	assert.Len(t, entries, 3, "diff must cover old ∪ new exactly once each")

	byKey := make(map[string]diffEntry[int], len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	require := assert.New(t)
	require.NotNil(byKey["a"].Old)
	require.Nil(byKey["a"].New)
	require.NotNil(byKey["b"].Old)
	require.NotNil(byKey["b"].New)
	require.Nil(byKey["c"].Old)
	require.NotNil(byKey["c"].New)
}
