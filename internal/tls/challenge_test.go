package tls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/kaelbrook/certsentry/internal/testing"
)

// fakeCASession implements caSession entirely in-memory, for exercising
// the Challenge Manager without a network round trip.
type fakeCASession struct {
	caSession
	triggerErr      error
	pollStatus      AuthorizationStatus
	pollErr         error
	triggeredTokens []string
}

func (f *fakeCASession) TriggerChallenge(ctx context.Context, domain string, ch Challenge) error {
	f.triggeredTokens = append(f.triggeredTokens, ch.Token)
	return f.triggerErr
}

func (f *fakeCASession) PollChallenge(ctx context.Context, domain string, ch Challenge) (AuthorizationStatus, *RetryAfter, error) {
	return f.pollStatus, nil, f.pollErr
}

func TestSupportedCombination(t *testing.T) {
	assert.True(t, supportedCombination(Combination{Challenges: []Challenge{{Type: ChallengeTLSSNI01}}}))
	assert.True(t, supportedCombination(Combination{Challenges: []Challenge{{Type: ChallengeTLSSNI01}, {Type: ChallengeTLSSNI02}}}))
	assert.False(t, supportedCombination(Combination{Challenges: []Challenge{{Type: "http-01"}}}))
	assert.False(t, supportedCombination(Combination{}))
}

func TestBuildChallengeCertificate(t *testing.T) {
	key, err := generateRSAKey()
	require.NoError(t, err)

	cert, err := buildChallengeCertificate(key, Challenge{Type: ChallengeTLSSNI01, Subject: "a.example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com"}, cert.DNSNames)

	cert, err = buildChallengeCertificate(key, Challenge{Type: ChallengeTLSSNI02, Subject: "a.example.com", SanB: "b.example.com"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.example.com", "b.example.com"}, cert.DNSNames)

	_, err = buildChallengeCertificate(key, Challenge{Type: "http-01"})
	assert.Error(t, err)
}

func TestChallengeManager_Authorize_AlreadyValid(t *testing.T) {
	logger := testhelpers.NewMockLogger()
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)

	getAuth := func(ctx context.Context, domain string) (*Authorization, error) {
		return &Authorization{Domain: domain, Status: StatusValid}, nil
	}

	err := cm.Authorize(context.Background(), "example.com", &fakeCASession{}, getAuth)
	assert.NoError(t, err)
}

func TestChallengeManager_Authorize_InstallsAndCleansUpChallengeCert(t *testing.T) {
	logger := testhelpers.NewMockLogger()
	logger.On("Info", mockAnythingArgs(3)...).Return()
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)

	session := &fakeCASession{pollStatus: StatusValid}

	getAuth := func(ctx context.Context, domain string) (*Authorization, error) {
		return &Authorization{
			Domain: domain,
			Status: StatusPending,
			Combinations: []Combination{
				{Challenges: []Challenge{{Type: ChallengeTLSSNI01, Token: "tok-1", Subject: domain}}},
			},
		}, nil
	}

	err := cm.Authorize(context.Background(), "example.com", session, getAuth)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, session.triggeredTokens)

	_, ok := dcs.Get(challengeEntryID("example.com"))
	assert.False(t, ok, "the challenge certificate must be removed once the challenge resolves")
}

func TestChallengeManager_Authorize_NoSupportedCombination(t *testing.T) {
	logger := testhelpers.NewMockLogger()
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)

	getAuth := func(ctx context.Context, domain string) (*Authorization, error) {
		return &Authorization{
			Domain: domain,
			Status: StatusPending,
			Combinations: []Combination{
				{Challenges: []Challenge{{Type: "http-01"}}},
			},
		}, nil
	}

	err := cm.Authorize(context.Background(), "example.com", &fakeCASession{}, getAuth)
	assert.Error(t, err)
}

func TestChallengeManager_Authorize_ChallengeNeverBecomesValid(t *testing.T) {
	logger := testhelpers.NewMockLogger()
	logger.On("Info", mockAnythingArgs(3)...).Return()
	dcs := NewDynamicCertStore(logger)
	cm := newChallengeManager(dcs, logger)

	session := &fakeCASession{pollStatus: StatusInvalid}

	getAuth := func(ctx context.Context, domain string) (*Authorization, error) {
		return &Authorization{
			Domain: domain,
			Status: StatusPending,
			Combinations: []Combination{
				{Challenges: []Challenge{{Type: ChallengeTLSSNI01, Token: "tok-1", Subject: domain}}},
			},
		}, nil
	}

	err := cm.Authorize(context.Background(), "example.com", session, getAuth)
	assert.Error(t, err)

	_, ok := dcs.Get(challengeEntryID("example.com"))
	assert.False(t, ok)
}
