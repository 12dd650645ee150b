package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/andestours/experience-booking/internal/model"
)

// ExperienceRepo provides data access to the experiences table.  The
// table holds metadata only (title, description, price, guide and the
// declared capacity total); the live capacity counter is owned by the
// capacity store and is never read or written through SQL.
type ExperienceRepo struct {
	db *sql.DB
}

// NewExperienceRepo returns a new ExperienceRepo bound to the provided database.
func NewExperienceRepo(db *sql.DB) *ExperienceRepo { return &ExperienceRepo{db: db} }

// Create inserts a new experience and fills in its assigned ID.
func (r *ExperienceRepo) Create(ctx context.Context, e *model.Experience) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO experiences (title, description, price_cents, guide_id, capacity_total) VALUES (?,?,?,?,?)`,
		e.Title, e.Description, e.PriceCents, e.GuideID, e.CapacityTotal)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID fetches one experience by id.  Returns ErrExperienceNotFound
// when no row matches.
func (r *ExperienceRepo) GetByID(ctx context.Context, id uint64) (model.Experience, error) {
	var e model.Experience
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price_cents, guide_id, capacity_total, created_at, updated_at
         FROM experiences WHERE id = ? LIMIT 1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.PriceCents, &e.GuideID, &e.CapacityTotal, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Experience{}, ErrExperienceNotFound
	}
	return e, err
}

// List returns all experiences, optionally filtered by guide.  Pass
// guideID = 0 for no filter.
func (r *ExperienceRepo) List(ctx context.Context, guideID uint64) ([]model.Experience, error) {
	const base = `SELECT id, title, description, price_cents, guide_id, capacity_total, created_at, updated_at FROM experiences`
	var (
		rows *sql.Rows
		err  error
	)
	if guideID != 0 {
		rows, err = r.db.QueryContext(ctx, base+` WHERE guide_id = ? ORDER BY id`, guideID)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Experience, 0)
	for rows.Next() {
		var e model.Experience
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.PriceCents, &e.GuideID, &e.CapacityTotal, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Update overwrites the mutable metadata of an experience.  The
// capacity total column is updated here for display purposes; callers
// must reseed the capacity store separately when it changes.
func (r *ExperienceRepo) Update(ctx context.Context, e *model.Experience) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE experiences SET title=?, description=?, price_cents=?, capacity_total=?, updated_at=NOW() WHERE id=?`,
		e.Title, e.Description, e.PriceCents, e.CapacityTotal, e.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExperienceNotFound
	}
	return nil
}

// Delete removes an experience row.  Returns ErrExperienceNotFound
// when nothing was deleted.
func (r *ExperienceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM experiences WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExperienceNotFound
	}
	return nil
}
