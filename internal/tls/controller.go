package tls

import (
	"context"
	"crypto/tls"
	"sync"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// controllerState is the Public Controller's lifecycle state machine
// (spec.md §4.8): NOT_STARTED -> UPDATING -> {OK, FAILED}.
type controllerState int32

const (
	stateNotStarted controllerState = iota
	stateUpdating
	stateOK
	stateFailed
)

func (s controllerState) String() string {
	switch s {
	case stateNotStarted:
		return "NOT_STARTED"
	case stateUpdating:
		return "UPDATING"
	case stateOK:
		return "OK"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// controller is the Public Controller (spec.md §4.8): it owns `cur`, the
// adopted Config, and enforces the lifecycle state machine around every
// call into the Config Reconciler. It is the Manager implementation
// wired to the surrounding TLS server.
type controller struct {
	mu    sync.Mutex
	state controllerState
	cur   Config

	fs     *FileStore
	dcs    *DynamicCertStore
	cr     *configReconciler
	logger observability.Logger
}

// newController wires the Config Reconciler's daily-check capability back
// to controller.Check without holding a reference to the controller
// itself anywhere inside the Config Reconciler's fields, per spec.md §9's
// anti-cyclic-reference guidance.
func newController(fs *FileStore, dcs *DynamicCertStore, cr *configReconciler, logger observability.Logger) Manager {
	c := &controller{fs: fs, dcs: dcs, cr: cr, logger: logger, state: stateNotStarted}

	cr.SetCheckFunc(func() {
		ctx := bgCtx()
		if err := c.Check(ctx); err != nil {
			logger.Error(ctx, err, "Scheduled renewal check failed")
		}
	})

	return c
}

// GetCertificate implements Manager by delegating to the DCS.
func (c *controller) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return c.dcs.GetCertificate(hello)
}

// GetTLSConfig implements Manager.
func (c *controller) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: c.dcs.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// Start implements Manager (spec.md §4.8 start()).
func (c *controller) Start(ctx context.Context) error {
	if err := c.transition(stateNotStarted, stateUpdating); err != nil {
		return err
	}
	return c.driveFromSaved(ctx, nil)
}

// StartWithConfig implements Manager (spec.md §4.8 start(conf)).
func (c *controller) StartWithConfig(ctx context.Context, conf Config) error {
	if err := c.transition(stateNotStarted, stateUpdating); err != nil {
		return err
	}
	return c.driveFromSaved(ctx, &conf)
}

// Reconfigure implements Manager (spec.md §4.8 reconfigure(conf)).
func (c *controller) Reconfigure(ctx context.Context, conf Config) error {
	if err := c.transition(stateOK, stateUpdating); err != nil {
		return err
	}

	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()

	return c.drive(ctx, cur, conf)
}

// Check implements Manager (spec.md §4.8 check()): reconciles the current
// config against itself, forcing a renewal pass.
func (c *controller) Check(ctx context.Context) error {
	if err := c.transition(stateOK, stateUpdating); err != nil {
		return err
	}

	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()

	return c.drive(ctx, cur, cur)
}

// driveFromSaved loads active.json (or emptyConf() if none exists) and
// reconciles it against the supplied config, or against itself when none
// is supplied (spec.md §4.8 start()/start(conf)).
func (c *controller) driveFromSaved(ctx context.Context, conf *Config) error {
	saved, ok, err := c.fs.LoadActiveConfig()
	if err != nil {
		c.mu.Lock()
		c.state = stateFailed
		c.mu.Unlock()
		return err
	}
	if !ok {
		saved = EmptyConfig()
	}

	target := saved
	if conf != nil {
		target = *conf
	}

	return c.drive(ctx, saved, target)
}

func (c *controller) drive(ctx context.Context, oldConf, newConf Config) error {
	err := c.cr.Update(ctx, oldConf, newConf)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = stateFailed
		return err
	}

	c.cur = newConf
	c.state = stateOK
	return nil
}

func (c *controller) transition(from, to controllerState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return acmeerrors.NewACMEError(acmeerrors.ErrCodeACMEIllegalState, map[string]interface{}{
			"current_state":  c.state.String(),
			"required_state": from.String(),
		}, nil)
	}

	c.state = to
	return nil
}
