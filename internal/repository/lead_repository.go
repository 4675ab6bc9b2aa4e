// Package repository implements data persistence using PostgreSQL.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jkindrix/quotebot/internal/domain"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
)

// Execer is the subset of *pgxpool.Pool the repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LeadRepository mirrors lead log rows into the leads table.
type LeadRepository struct {
	db    Execer
	now   func() time.Time
	newID func() uuid.UUID
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(db Execer) *LeadRepository {
	return &LeadRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
}

var insertLeadSQL = LeadColumns.InsertSQL()

// Record inserts one lead row. It satisfies leads.Sink.
func (r *LeadRepository) Record(ctx context.Context, rec domain.LeadRecord) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	rec = rec.Normalize()
	_, err := r.db.Exec(ctx, insertLeadSQL,
		r.newID(),
		rec.SessionID,
		rec.Email,
		rec.Service,
		rec.Platform,
		rec.Features,
		rec.LeadStatus,
		rec.Issue,
		r.now(),
	)
	if err != nil {
		return apperrors.DatabaseError("repository.LeadRepository.Record", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (r *LeadRepository) Name() string { return "postgres" }
