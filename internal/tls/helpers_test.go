package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/stretchr/testify/mock"

	testhelpers "github.com/kaelbrook/certsentry/internal/testing"
)

// newTestLogger returns a MockLogger pre-wired to accept any Info/Warn/
// Error/Debug call, for tests exercising control flow rather than
// asserting on specific log lines.
func newTestLogger() *testhelpers.MockLogger {
	logger := testhelpers.NewMockLogger()
	logger.On("Info", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Info", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Info", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Info", mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Error", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Error", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Warn", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Warn", mock.Anything, mock.Anything).Return().Maybe()
	logger.On("Debug", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	return logger
}

// selfSignedTestCert builds a minimal self-signed leaf for a hostname,
// used by tests exercising the store and persistence layer without
// touching a real CA.
func selfSignedTestCert(key *rsa.PrivateKey, hostname string) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: hostname},
		DNSNames:     []string{hostname},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	return x509.ParseCertificate(der)
}
