package cache

import (
	"context"
	"time"

	"visitagent/internal/models"

	"github.com/uptrace/bun"
)

// Store is the read/write surface the target resolver uses. Writes replace
// the whole result set for one query key so a stale partial list is never
// served.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// ReplaceOutlets swaps the cached rows for one search key in a single
// transaction.
func (s *Store) ReplaceOutlets(ctx context.Context, queryKey string, targets []models.VisitTarget) error {
	now := time.Now().UTC()
	rows := make([]models.CachedOutlet, 0, len(targets))
	for i, t := range targets {
		rows = append(rows, models.CachedOutlet{
			ID:          t.ID,
			Code:        t.Code,
			Name:        t.Name,
			District:    t.District,
			Location:    t.CoordinateString,
			Radius:      t.RadiusMeters,
			QueryKey:    queryKey,
			Position:    i,
			RefreshedAt: now,
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.CachedOutlet)(nil)).
			Where("query_key = ?", queryKey).Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("district = EXCLUDED.district").
			Set("location = EXCLUDED.location").
			Set("radius = EXCLUDED.radius").
			Set("query_key = EXCLUDED.query_key").
			Set("position = EXCLUDED.position").
			Set("refreshed_at = EXCLUDED.refreshed_at").
			Exec(ctx)
		return err
	})
}

// Outlets returns the cached rows for one search key in fetch order.
func (s *Store) Outlets(ctx context.Context, queryKey string) ([]models.VisitTarget, error) {
	var rows []models.CachedOutlet
	err := s.db.NewSelect().Model(&rows).
		Where("query_key = ?", queryKey).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]models.VisitTarget, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, r.Target())
	}
	return targets, nil
}

// ReplacePlanVisits swaps the cached plan visits for one date.
func (s *Store) ReplacePlanVisits(ctx context.Context, date time.Time, targets []models.VisitTarget) error {
	day := date.Truncate(24 * time.Hour)
	now := time.Now().UTC()
	rows := make([]models.CachedPlanVisit, 0, len(targets))
	for i, t := range targets {
		rows = append(rows, models.CachedPlanVisit{
			ID:          t.ScheduledVisitID,
			OutletID:    t.ID,
			OutletCode:  t.Code,
			OutletName:  t.Name,
			District:    t.District,
			Location:    t.CoordinateString,
			Radius:      t.RadiusMeters,
			VisitDate:   day,
			Position:    i,
			RefreshedAt: now,
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.CachedPlanVisit)(nil)).
			Where("visit_date = ?", day).Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// PlanVisits returns the cached plan visits for one date in fetch order.
func (s *Store) PlanVisits(ctx context.Context, date time.Time) ([]models.VisitTarget, error) {
	day := date.Truncate(24 * time.Hour)
	var rows []models.CachedPlanVisit
	err := s.db.NewSelect().Model(&rows).
		Where("visit_date = ?", day).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]models.VisitTarget, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, r.Target())
	}
	return targets, nil
}
