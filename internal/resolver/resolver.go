// Package resolver implements the Order Resolver (§4.5), the system's
// core decision layer: given a dealership's active inventory, its filter
// rules, and the VIN log (local and cross-dealership), it decides which
// vehicles need graphics today.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/filter"
	"github.com/silverfox/cao-engine/internal/metrics"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/internal/tracing"
)

// Resolver reads Store but never writes to it.
type Resolver struct {
	store *store.Store
	logger *slog.Logger
	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

func New(s *store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger, now: time.Now}
}

// ResolveLIST implements §4.5 LIST mode: no filter rules, no cross-dealership
// logic, just membership in the dealership's current inventory.
func (r *Resolver) ResolveLIST(ctx context.Context, dealership string, vins []string) (domain.Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.list")
	defer span.End()
	start := time.Now()

	vehicles, err := r.store.VehiclesByVINs(ctx, dealership, vins)
	if err != nil {
		return domain.Resolution{}, err
	}
	found := make(map[string]domain.Vehicle, len(vehicles))
	for _, v := range vehicles {
		found[v.VIN] = v
	}

	res := domain.Resolution{Dealership: dealership, Mode: domain.ModeList}
	for _, vin := range vins {
		v, ok := found[vin]
		if !ok {
			res.Missing = append(res.Missing, vin)
			res.Classifications = append(res.Classifications, domain.Classification{VIN: vin, Action: domain.ActionSkip, Reason: domain.ReasonNotInInventory})
			metrics.CAOResolutionsTotal.WithLabelValues(dealership, string(domain.ActionSkip), string(domain.ReasonNotInInventory)).Inc()
			continue
		}
		res.Included = append(res.Included, v)
		res.Classifications = append(res.Classifications, domain.Classification{VIN: vin, Action: domain.ActionInclude, Reason: domain.ReasonFirstTime})
		metrics.CAOResolutionsTotal.WithLabelValues(dealership, string(domain.ActionInclude), string(domain.ReasonFirstTime)).Inc()
	}

	metrics.CAOResolutionDuration.WithLabelValues(dealership, string(domain.ModeList)).Observe(time.Since(start).Seconds())
	return res, nil
}

// ResolveCAO implements §4.5 CAO mode, the six-rule decision algorithm.
func (r *Resolver) ResolveCAO(ctx context.Context, dealership string) (domain.Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.cao")
	defer span.End()
	start := time.Now()

	manifest, err := r.store.ActiveManifest(ctx)
	if err != nil {
		return domain.Resolution{}, err
	}
	cfg, err := r.store.DealershipConfig(ctx, dealership)
	if err != nil {
		return domain.Resolution{}, err
	}
	inventory, err := r.store.ActiveInventory(ctx, dealership, manifest.ImportID)
	if err != nil {
		return domain.Resolution{}, err
	}
	localLog, err := r.store.DealershipVINLog(ctx, dealership)
	if err != nil {
		return domain.Resolution{}, err
	}
	crossLog, err := r.store.CrossDealershipVINs(ctx, dealership)
	if err != nil {
		return domain.Resolution{}, err
	}

	localByVIN := make(map[string][]domain.VINLogEntry, len(localLog))
	for _, e := range localLog {
		localByVIN[e.VIN] = append(localByVIN[e.VIN], e)
	}

	now := r.now()
	res := domain.Resolution{Dealership: dealership, Mode: domain.ModeCAO}

	for _, v := range inventory {
		action, reason := classify(v, localByVIN[v.VIN], crossLog[v.VIN], cfg.FilterRules, now)
		res.Classifications = append(res.Classifications, domain.Classification{VIN: v.VIN, Action: action, Reason: reason})
		metrics.CAOResolutionsTotal.WithLabelValues(dealership, string(action), string(reason)).Inc()
		if action == domain.ActionInclude {
			res.Included = append(res.Included, v)
		}
	}

	metrics.CAOResolutionDuration.WithLabelValues(dealership, string(domain.ModeCAO)).Observe(time.Since(start).Seconds())
	r.logger.Info("cao_resolved",
		slog.String("dealership", dealership),
		slog.Int("candidates", len(inventory)),
		slog.Int("included", len(res.Included)),
	)
	return res, nil
}

// classify applies §4.5's ordered, first-match-wins rule table to one
// candidate vehicle. It is pure and independently testable.
func classify(v domain.Vehicle, local []domain.VINLogEntry, cross []domain.VINLogEntry, rules domain.FilterRules, now time.Time) (domain.ResolveAction, domain.ResolveReason) {
	if v.Incomplete || len(v.VIN) != 17 {
		return domain.ActionSkip, domain.ReasonInvalidVIN
	}

	if d := filter.Evaluate(v, rules); !d.Accepted {
		return domain.ActionSkip, d.ReasonString()
	}

	// Rule 1: BASELINE entry at this dealership.
	for _, e := range local {
		if e.OrderType == domain.OrderTypeBaseline {
			return domain.ActionSkip, domain.ReasonBaseline
		}
	}

	mostRecent, hasLocal := mostRecentEntry(local)

	// Rule 2: processed locally within the last day with identical type.
	// Rule 3: processed locally within the last 7 days with identical type.
	if hasLocal && mostRecent.VehicleType == v.VehicleType {
		age := daysSince(now, mostRecent.ProcessedDate)
		switch {
		case age <= 1:
			return domain.ActionSkip, domain.ReasonSameDayDuplicate
		case age <= 7:
			return domain.ActionSkip, domain.ReasonRecentUnchanged
		}
	}

	// Rule 4: no local history at all, but another dealership has seen it.
	if !hasLocal && len(cross) > 0 {
		return domain.ActionInclude, domain.ReasonCrossDealership
	}

	// Rule 5: local history exists but the logged type has changed.
	if hasLocal && mostRecent.VehicleType != v.VehicleType {
		return domain.ActionInclude, domain.ReasonStatusChange
	}

	// Rule 6: first-time processing (or unchanged type outside the 7-day window).
	return domain.ActionInclude, domain.ReasonFirstTime
}

func mostRecentEntry(entries []domain.VINLogEntry) (domain.VINLogEntry, bool) {
	var best domain.VINLogEntry
	found := false
	for _, e := range entries {
		if e.OrderType == domain.OrderTypeBaseline {
			continue
		}
		if !found || e.ProcessedDate.After(best.ProcessedDate) {
			best = e
			found = true
		}
	}
	return best, found
}

// daysSince returns the calendar-day difference between now and t in the
// service's timezone (UTC), per §4.5's tie-break rule.
func daysSince(now, t time.Time) int {
	ny, nm, nd := now.UTC().Date()
	ty, tm, td := t.UTC().Date()
	nowDate := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	thenDate := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	diff := int(nowDate.Sub(thenDate).Hours() / 24)
	if diff < 0 {
		return 0
	}
	return diff
}
