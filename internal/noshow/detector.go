package noshow

import (
	"context"
	"fmt"
	"time"

	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// markNoShowSQL is the set-based form of the rule in predicate.go. The two
// must stay in agreement; the threshold comes from one config value so they
// cannot drift apart.
const markNoShowSQL = `
UPDATE appointments
SET no_show = TRUE,
    no_show_at = NOW(),
    updated_at = NOW()
WHERE status != 'cancelled'
  AND no_show = FALSE
  AND frontend_states ? 'confirmed'
  AND (frontend_states->'confirmed'->>'timestamp') IS NOT NULL
  AND (
    (
      -- Case A: work never started
      COALESCE((frontend_states->'in_progress'->>'active')::boolean, FALSE) = FALSE
      AND COALESCE((frontend_states->'in_progress'->>'completed')::boolean, FALSE) = FALSE
      AND NOW() - (frontend_states->'confirmed'->>'timestamp')::timestamptz > make_interval(secs => $1)
    )
    OR
    (
      -- Case B: work started too late
      (
        COALESCE((frontend_states->'in_progress'->>'active')::boolean, FALSE)
        OR COALESCE((frontend_states->'in_progress'->>'completed')::boolean, FALSE)
      )
      AND (frontend_states->'in_progress'->>'timestamp') IS NOT NULL
      AND (frontend_states->'in_progress'->>'timestamp')::timestamptz
          - (frontend_states->'confirmed'->>'timestamp')::timestamptz > make_interval(secs => $1)
    )
  )`

// Detector runs the no-show rule as one bulk UPDATE. Idempotent: flagged
// rows are excluded by the no_show = FALSE guard, so re-runs never re-flip.
type Detector struct {
	pool      *pgxpool.Pool
	log       *logger.Logger
	threshold time.Duration
}

func NewDetector(pool *pgxpool.Pool, cfg config.NoShowConfig, log *logger.Logger) *Detector {
	return &Detector{
		pool:      pool,
		log:       log,
		threshold: cfg.GetNoShowThreshold(),
	}
}

// Run executes one detection sweep and returns the number of appointments
// flagged.
func (d *Detector) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	tag, err := d.pool.Exec(ctx, markNoShowSQL, d.threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("mark no-show appointments: %w", err)
	}

	flagged := tag.RowsAffected()
	if flagged > 0 {
		d.log.Info("no-show sweep flagged appointments",
			"flagged", flagged,
			"threshold", d.threshold.String(),
			"elapsed", time.Since(start).String(),
		)
	}
	return flagged, nil
}
