package timestamps

import (
	"context"
	"errors"
	"fmt"

	"csbridge/internal/models"

	"github.com/sirupsen/logrus"
)

// RowStore is the slice of the conversation store the backfill walks.
type RowStore interface {
	ListTimestamps(ctx context.Context, table string) ([]models.TimestampRow, error)
	UpdateTimestamp(ctx context.Context, table string, id int64, value string) error
}

// ReviewItem is a row the heuristic could not resolve.
type ReviewItem struct {
	Table  string `json:"table"`
	ID     int64  `json:"id"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// Report summarizes one table's pass.
type Report struct {
	Table     string       `json:"table"`
	Scanned   int          `json:"scanned"`
	Converted int          `json:"converted"`
	Unchanged int          `json:"unchanged"`
	Failed    int          `json:"failed"`
	Review    []ReviewItem `json:"review,omitempty"`
}

// Backfill rewrites legacy local-offset created_at values as canonical UTC.
type Backfill struct {
	store  RowStore
	zone   Zone
	clock  Clock
	logger *logrus.Logger
	dryRun bool
}

// NewBackfill creates a backfill over store. A dry run computes and logs
// decisions without writing.
func NewBackfill(store RowStore, zone Zone, clock Clock, logger *logrus.Logger, dryRun bool) *Backfill {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Backfill{store: store, zone: zone, clock: clock, logger: logger, dryRun: dryRun}
}

// Run walks each table in turn, one row at a time. A failed row update is
// counted and logged and the walk continues. A table that cannot be listed is
// skipped and its error returned alongside the other reports.
func (b *Backfill) Run(ctx context.Context, tables ...string) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, table := range tables {
		report, err := b.runTable(ctx, table)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return reports, ctxErr
			}
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (b *Backfill) runTable(ctx context.Context, table string) (Report, error) {
	report := Report{Table: table}
	rows, err := b.store.ListTimestamps(ctx, table)
	if err != nil {
		return report, fmt.Errorf("failed to list %s timestamps: %w", table, err)
	}

	now := b.clock.Now()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		d := Decide(row.Raw, now, b.zone)
		fields := logrus.Fields{
			"table":  table,
			"row_id": row.ID,
			"raw":    row.Raw,
			"action": d.Action.String(),
		}

		switch {
		case d.Action == Review:
			report.Review = append(report.Review, ReviewItem{Table: table, ID: row.ID, Raw: row.Raw, Reason: d.Reason})
			b.logger.WithFields(fields).WithField("reason", d.Reason).Warn("Timestamp flagged for review")
		case !d.Rewrites():
			report.Unchanged++
		case b.dryRun:
			report.Converted++
			b.logger.WithFields(fields).WithField("value", d.Value).Info("Timestamp would be rewritten")
		default:
			if err := b.store.UpdateTimestamp(ctx, table, row.ID, d.Value); err != nil {
				report.Failed++
				b.logger.WithFields(fields).WithError(err).Error("Failed to rewrite timestamp")
				continue
			}
			report.Converted++
			b.logger.WithFields(fields).WithField("value", d.Value).Debug("Timestamp rewritten")
		}
	}

	b.logger.WithFields(logrus.Fields{
		"table":     table,
		"scanned":   report.Scanned,
		"converted": report.Converted,
		"failed":    report.Failed,
		"review":    len(report.Review),
		"dry_run":   b.dryRun,
	}).Info("Timestamp backfill finished")
	return report, nil
}
