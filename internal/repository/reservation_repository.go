package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/andestours/experience-booking/internal/model"
)

// ReservationRepo provides data access to the reservations table.  It
// is the Reservation Store of the admission controller: methods report
// a missing row with sql.ErrNoRows so the controller can translate it
// into its own NotFound.  All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, experience_id, user_id, booking_date, party_size, notes, attended, status, idempotency_key, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (model.Reservation, error) {
	var (
		rec model.Reservation
		key sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.ExperienceID, &rec.UserID, &rec.Date, &rec.PartySize,
		&rec.Notes, &rec.Attended, &rec.Status, &key, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	if key.Valid {
		rec.IdempotencyKey = &key.String
	}
	return rec, nil
}

// Create inserts a reservation and fills in its assigned ID and
// timestamps.  The idempotency_key column has a unique index per
// (user_id, idempotency_key) so a duplicate replay that races past the
// controller's lookup fails here instead of producing two rows.
func (r *ReservationRepo) Create(ctx context.Context, rec *model.Reservation) error {
	var key interface{}
	if rec.IdempotencyKey != nil {
		key = *rec.IdempotencyKey
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reservations (experience_id, user_id, booking_date, party_size, notes, attended, status, idempotency_key)
         VALUES (?,?,?,?,?,?,?,?)`,
		rec.ExperienceID, rec.UserID, rec.Date.UTC().Format("2006-01-02"), rec.PartySize,
		rec.Notes, rec.Attended, rec.Status, key)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// GetByID fetches one reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? LIMIT 1`, id)
	return scanReservation(row)
}

// GetByIdempotencyKey fetches the reservation previously created by
// the same requester with the same idempotency key, if any.
func (r *ReservationRepo) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? AND idempotency_key = ? LIMIT 1`,
		userID, key)
	return scanReservation(row)
}

// SetAttended flips the attended flag to true.  The transition is
// one-way; flipping an already-attended reservation is a no-op that
// still succeeds.  Returns sql.ErrNoRows when the reservation does
// not exist.
func (r *ReservationRepo) SetAttended(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET attended = 1, updated_at = NOW() WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a reservation and returns the removed record so the
// caller can release its seats.  The read and the delete run in one
// transaction so two concurrent cancels cannot both observe the row.
// Returns sql.ErrNoRows when the reservation does not exist.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) (model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	rec, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	committed = true
	return rec, nil
}

// ListByUser returns all reservations created by a user, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListByExperienceAndDate returns reservations for an experience,
// optionally restricted to one booking date (zero time means all
// dates).  Used by guides to review attendance.
func (r *ReservationRepo) ListByExperienceAndDate(ctx context.Context, experienceID uint64, date time.Time) ([]model.Reservation, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if date.IsZero() {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE experience_id = ? ORDER BY booking_date, id`,
			experienceID)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE experience_id = ? AND booking_date = ? ORDER BY id`,
			experienceID, date.UTC().Format("2006-01-02"))
	}
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	items := make([]model.Reservation, 0)
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
