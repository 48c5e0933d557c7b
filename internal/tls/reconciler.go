package tls

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	acmeerrors "github.com/kaelbrook/certsentry/internal/errors"
	"github.com/kaelbrook/certsentry/internal/observability"
)

// configReconciler is the top-level two-phase orchestrator: diffs an old
// vs. new configuration, runs a fast cached pass across all accounts in
// parallel, then a sequential authoritative pass that contacts the CA,
// schedules a daily renewal check, and persists the applied configuration
// (spec.md §4.6).
type configReconciler struct {
	fs     *FileStore
	dcs    *DynamicCertStore
	am     *accountManager
	logger observability.Logger

	timerMu     sync.Mutex
	timer       *time.Timer
	scheduledAt string
	checkFn     func()
}

func newConfigReconciler(fs *FileStore, dcs *DynamicCertStore, am *accountManager, logger observability.Logger) *configReconciler {
	return &configReconciler{fs: fs, dcs: dcs, am: am, logger: logger}
}

// SetCheckFunc wires the capability the daily timer invokes on firing.
// Passed in as a closure rather than a reference to the owning controller,
// per spec.md §9's guidance to eliminate cyclic references between
// components.
func (cr *configReconciler) SetCheckFunc(fn func()) {
	cr.checkFn = fn
}

// Update drives one reconciliation from oldConf to newConf.
func (cr *configReconciler) Update(ctx context.Context, oldConf, newConf Config) error {
	if err := newConf.Validate(); err != nil {
		return err
	}

	cr.maybeReschedule(newConf.RenewalCheckTime)

	diffs := mapDiff(oldConf.Accounts, newConf.Accounts)

	phase1Errs := cr.phase1(diffs)
	phase2Errs := cr.phase2(ctx, diffs)

	// Step 6 runs regardless of phase1/phase2 outcome: either phase may
	// already have mutated the DCS before failing, and the default alias
	// must reflect exactly what newConf declares (spec.md §4.6 step 6).
	cr.applyDefaultAlias(newConf)

	allErrs := append(phase1Errs, phase2Errs...)
	if len(allErrs) > 0 {
		for _, err := range allErrs {
			cr.logger.Error(ctx, err, "Some account(s) failed")
		}
		return acmeerrors.NewAggregateError("Some account(s) failed", allErrs)
	}

	return cr.fs.SaveActiveConfig(newConf)
}

// phase1 runs AM.UpdateCached for every account diff entry concurrently
// (spec.md §5: "phase 1 is concurrent" across accounts).
func (cr *configReconciler) phase1(diffs []diffEntry[Account]) []error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, d := range diffs {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cr.am.UpdateCached(d.Key, d.Old, d.New); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("account %s: %w", d.Key, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errs
}

// phase2 runs AM.UpdateOthers strictly sequentially across accounts
// (spec.md §5: "across accounts, phase 2 is strictly sequential"), so
// that one account's CA traffic completes before the next begins.
func (cr *configReconciler) phase2(ctx context.Context, diffs []diffEntry[Account]) []error {
	var errs []error

	for _, d := range diffs {
		if err := cr.am.UpdateOthers(ctx, d.Key, d.Old, d.New); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", d.Key, err))
		}
	}

	return errs
}

// applyDefaultAlias clears or sets the DCS default alias to the unique
// enabled certificate marked defaultCert in newConf (spec.md §4.6 step 6,
// §8 property 3). Config.Validate already guarantees at most one exists.
func (cr *configReconciler) applyDefaultAlias(newConf Config) {
	for acctID, acct := range newConf.Accounts {
		if !acct.Enabled {
			continue
		}
		dbID := AccountDbId(acctID, acct.ProviderURL)
		for certID, cert := range acct.Certificates {
			if cert.Enabled && cert.DefaultCert {
				fullID := fullCertID(dbID, certID)
				cr.dcs.SetIdOfDefaultAlias(&fullID)
				return
			}
		}
	}

	cr.dcs.SetIdOfDefaultAlias(nil)
}

// maybeReschedule (re)arms the daily renewal timer the first time Update
// runs, or whenever renewalCheckTime changes (spec.md §4.6 step 2).
func (cr *configReconciler) maybeReschedule(renewalCheckTime string) {
	cr.timerMu.Lock()
	defer cr.timerMu.Unlock()

	if cr.timer != nil && cr.scheduledAt == renewalCheckTime {
		return
	}

	cr.scheduledAt = renewalCheckTime
	cr.armTimerLocked(renewalCheckTime)
}

func (cr *configReconciler) armTimerLocked(renewalCheckTime string) {
	if cr.timer != nil {
		cr.timer.Stop()
	}

	wait := time.Until(nextOccurrence(time.Now(), renewalCheckTime))

	cr.timer = time.AfterFunc(wait, func() {
		if cr.checkFn != nil {
			cr.checkFn()
		}

		cr.timerMu.Lock()
		cr.armTimerLocked(cr.scheduledAt)
		cr.timerMu.Unlock()
	})
}

// nextOccurrence returns the next wall-clock moment matching "HH:MM:SS",
// today if it hasn't passed yet, tomorrow otherwise. An unparseable time
// string falls back to 24h from now rather than panicking.
func nextOccurrence(now time.Time, hhmmss string) time.Time {
	h, m, s, err := parseTimeOfDay(hhmmss)
	if err != nil {
		return now.Add(24 * time.Hour)
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), h, m, s, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

func parseTimeOfDay(hhmmss string) (hour, minute, second int, err error) {
	parts := strings.Split(hhmmss, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM:SS", hhmmss)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, err
	}
	second, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return hour, minute, second, nil
}
