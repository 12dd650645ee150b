package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/andestours/experience-booking/internal/model"
)

// RatingRepo provides data access to the ratings table.  Ratings are
// plain records with no cross-record invariant.
type RatingRepo struct {
	db *sql.DB
}

// NewRatingRepo returns a new RatingRepo bound to the provided database.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// Create inserts a rating and fills in its assigned ID.
func (r *RatingRepo) Create(ctx context.Context, rt *model.Rating) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ratings (experience_id, user_id, comment, score) VALUES (?,?,?,?)`,
		rt.ExperienceID, rt.UserID, rt.Comment, rt.Score)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rt.ID = uint64(id)
	return nil
}

// GetByID fetches one rating by id.  Returns ErrRatingNotFound when no
// row matches.
func (r *RatingRepo) GetByID(ctx context.Context, id uint64) (model.Rating, error) {
	var rt model.Rating
	err := r.db.QueryRowContext(ctx,
		`SELECT id, experience_id, user_id, comment, score, created_at FROM ratings WHERE id = ? LIMIT 1`, id).
		Scan(&rt.ID, &rt.ExperienceID, &rt.UserID, &rt.Comment, &rt.Score, &rt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rating{}, ErrRatingNotFound
	}
	return rt, err
}

// List returns ratings, optionally filtered by experience (0 = all).
func (r *RatingRepo) List(ctx context.Context, experienceID uint64) ([]model.Rating, error) {
	const base = `SELECT id, experience_id, user_id, comment, score, created_at FROM ratings`
	var (
		rows *sql.Rows
		err  error
	)
	if experienceID != 0 {
		rows, err = r.db.QueryContext(ctx, base+` WHERE experience_id = ? ORDER BY id`, experienceID)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY id`)
	}
	if err != nil {
		return nil, err
	}
	return collectRatings(rows)
}

// ListByGuide returns the ratings left on any experience run by the
// given guide, joined through the experiences table.  Lets a guide
// review feedback across their whole catalog in one call.
func (r *RatingRepo) ListByGuide(ctx context.Context, guideID uint64) ([]model.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.experience_id, r.user_id, r.comment, r.score, r.created_at
         FROM ratings r JOIN experiences e ON e.id = r.experience_id
         WHERE e.guide_id = ? ORDER BY r.id`, guideID)
	if err != nil {
		return nil, err
	}
	return collectRatings(rows)
}

func collectRatings(rows *sql.Rows) ([]model.Rating, error) {
	defer rows.Close()
	items := make([]model.Rating, 0)
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.ID, &rt.ExperienceID, &rt.UserID, &rt.Comment, &rt.Score, &rt.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, rt)
	}
	return items, rows.Err()
}

// Delete removes a rating.  Returns ErrRatingNotFound when nothing was
// deleted.
func (r *RatingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRatingNotFound
	}
	return nil
}
