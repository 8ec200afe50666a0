package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"visitagent/internal/cache"
	"visitagent/internal/models"

	"go.uber.org/zap"
)

// TargetSource is the backend surface the resolver fetches candidates from.
type TargetSource interface {
	SearchOutlets(ctx context.Context, search string, perPage int) ([]models.VisitTarget, error)
	PlanVisits(ctx context.Context, date time.Time) ([]models.VisitTarget, error)
}

// TargetResolver decides whether the active target is a scheduled visit or
// an ad-hoc outlet, keeps the candidate list current, and owns the selected
// target id.
//
// Every fetch carries a generation stamped when it starts; a result whose
// generation no longer matches is discarded, so a slow fetch from a previous
// mode or search value can never overwrite a newer list.
type TargetResolver struct {
	source   TargetSource
	store    *cache.Store
	perPage  int
	debounce time.Duration
	logr     *zap.Logger

	mu         sync.Mutex
	mode       models.TargetMode
	searchText string
	generation uint64
	timer      *time.Timer
	candidates []models.VisitTarget
	stale      bool // candidates came from the local cache
	selectedID string
	closed     bool
}

func NewTargetResolver(source TargetSource, store *cache.Store, perPage int, debounce time.Duration, logr *zap.Logger) *TargetResolver {
	r := &TargetResolver{
		source:   source,
		store:    store,
		perPage:  perPage,
		debounce: debounce,
		logr:     logr,
		mode:     models.ModeScheduled,
	}
	// The shell lands on the scheduled list, so load today's plan up front.
	// A mode or search change before this completes supersedes it.
	go r.fetch(r.generation, models.ModeScheduled, "")
	return r
}

// SetMode switches between scheduled and ad-hoc candidates. Switching clears
// the selection and invalidates any in-flight fetch of the previous mode.
// Setting the current mode again is a no-op.
func (r *TargetResolver) SetMode(mode models.TargetMode) error {
	if mode != models.ModeScheduled && mode != models.ModeAdhoc {
		return fmt.Errorf("unknown target mode %q", mode)
	}

	r.mu.Lock()
	if r.mode == mode {
		r.mu.Unlock()
		return nil
	}
	r.mode = mode
	r.searchText = ""
	r.selectedID = ""
	r.candidates = nil
	r.stale = false
	r.stopTimerLocked()
	gen := r.bumpLocked()
	r.mu.Unlock()

	go r.fetch(gen, mode, "")
	return nil
}

// SetSearchText updates the ad-hoc search filter. The fetch fires only after
// the input has been quiet for the debounce window; each keystroke restarts
// the timer.
func (r *TargetResolver) SetSearchText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != models.ModeAdhoc {
		return errors.New("search text only applies to ad-hoc mode")
	}
	if r.closed {
		return nil
	}

	r.searchText = text
	r.stopTimerLocked()
	gen := r.bumpLocked()
	r.timer = time.AfterFunc(r.debounce, func() {
		go r.fetch(gen, models.ModeAdhoc, text)
	})
	return nil
}

// Select marks a candidate as the active target. Selecting the already
// selected id is a no-op: no refetch, no downstream invalidation.
func (r *TargetResolver) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.selectedID {
		return nil
	}
	for _, t := range r.candidates {
		if t.ID == id {
			r.selectedID = id
			return nil
		}
	}
	return fmt.Errorf("target %s is not in the current candidate list", id)
}

// ClearSelection drops the selected target (used by the workflow reset).
func (r *TargetResolver) ClearSelection() {
	r.mu.Lock()
	r.selectedID = ""
	r.mu.Unlock()
}

// Selected returns a copy of the selected target, or nil.
func (r *TargetResolver) Selected() *models.VisitTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.candidates {
		if t.ID == r.selectedID {
			out := t
			return &out
		}
	}
	return nil
}

// Mode returns the active mode.
func (r *TargetResolver) Mode() models.TargetMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// List returns the current candidates and whether they were served from the
// offline cache.
func (r *TargetResolver) List() ([]models.VisitTarget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.VisitTarget, len(r.candidates))
	copy(out, r.candidates)
	return out, r.stale
}

// Refresh re-runs the fetch for the current mode and search value.
func (r *TargetResolver) Refresh() {
	r.mu.Lock()
	mode, text := r.mode, r.searchText
	gen := r.bumpLocked()
	r.mu.Unlock()
	go r.fetch(gen, mode, text)
}

// Close aborts the pending debounce timer. In-flight fetches are not waited
// on; their results are discarded by the generation check.
func (r *TargetResolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.stopTimerLocked()
	r.bumpLocked()
	r.mu.Unlock()
}

func (r *TargetResolver) bumpLocked() uint64 {
	r.generation++
	return r.generation
}

func (r *TargetResolver) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// fetch loads candidates for (mode, text) and applies them only if gen still
// matches. On a network failure the last cached list for the same key is
// served instead, flagged stale.
func (r *TargetResolver) fetch(gen uint64, mode models.TargetMode, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		targets []models.VisitTarget
		err     error
		today   = time.Now()
	)
	if mode == models.ModeScheduled {
		targets, err = r.source.PlanVisits(ctx, today)
	} else {
		targets, err = r.source.SearchOutlets(ctx, text, r.perPage)
	}

	fromCache := false
	if err != nil {
		var netErr *models.NetworkError
		if errors.As(err, &netErr) && r.store != nil {
			targets, fromCache = r.loadCached(ctx, mode, text, today)
		}
		if !fromCache {
			r.logr.Warn("target fetch failed",
				zap.String("mode", string(mode)),
				zap.String("search", text),
				zap.Error(err))
			return
		}
	}

	r.mu.Lock()
	if gen != r.generation {
		// A newer mode/search superseded this fetch while it was in flight.
		r.mu.Unlock()
		return
	}
	r.candidates = targets
	r.stale = fromCache
	r.mu.Unlock()

	if err == nil && r.store != nil {
		r.persist(mode, text, today, targets)
	}
}

func (r *TargetResolver) loadCached(ctx context.Context, mode models.TargetMode, text string, today time.Time) ([]models.VisitTarget, bool) {
	var (
		targets []models.VisitTarget
		err     error
	)
	if mode == models.ModeScheduled {
		targets, err = r.store.PlanVisits(ctx, today)
	} else {
		targets, err = r.store.Outlets(ctx, outletQueryKey(text))
	}
	if err != nil {
		r.logr.Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	return targets, true
}

func (r *TargetResolver) persist(mode models.TargetMode, text string, today time.Time, targets []models.VisitTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if mode == models.ModeScheduled {
		err = r.store.ReplacePlanVisits(ctx, today, targets)
	} else {
		err = r.store.ReplaceOutlets(ctx, outletQueryKey(text), targets)
	}
	if err != nil {
		r.logr.Warn("cache write failed", zap.Error(err))
	}
}

func outletQueryKey(text string) string { return "search:" + text }
