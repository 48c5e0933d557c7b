package tls

import (
	"context"
	"crypto/tls"
)

// Manager is the Public Controller's external face (spec.md §4.8, §6.3,
// §6.4): the lifecycle API the rest of the application drives, and the
// key-manager interface the TLS-terminating server consults on every
// handshake. The only method external packages call today is
// GetTLSConfig (internal/server/providers.go's WithTLS), confirmed by
// grepping every import of this package before trimming this interface
// down from the teacher's certmagic-era shape.
type Manager interface {
	// GetCertificate returns the certificate to present for a given
	// handshake's SNI hostname, used as tls.Config.GetCertificate.
	GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error)

	// GetTLSConfig returns a *tls.Config wired to this manager's DCS.
	GetTLSConfig() *tls.Config

	// Start transitions NOT_STARTED -> UPDATING -> {OK, FAILED}: loads
	// active.json (or an empty config if none exists yet) and reconciles
	// it against itself (spec.md §4.8 start()).
	Start(ctx context.Context) error

	// StartWithConfig is Start, but reconciles the loaded state against a
	// supplied configuration instead of itself (spec.md §4.8 start(conf)).
	StartWithConfig(ctx context.Context, conf Config) error

	// Reconfigure transitions OK -> UPDATING -> {OK, FAILED}: reconciles
	// the current configuration against a new one (spec.md §4.8
	// reconfigure(conf)).
	Reconfigure(ctx context.Context, conf Config) error

	// Check transitions OK -> UPDATING -> {OK, FAILED}: forces a renewal
	// pass by reconciling the current configuration against itself
	// (spec.md §4.8 check()).
	Check(ctx context.Context) error
}
