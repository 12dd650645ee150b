package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/andestours/experience-booking/internal/booking"
	"github.com/andestours/experience-booking/internal/repository"
)

// ReservationHandler exposes the admission controller over HTTP.  The
// handler only translates between HTTP and the controller's error
// taxonomy; all booking decisions, capacity accounting and
// compensation live in the booking package.
type ReservationHandler struct {
	Controller   *booking.Controller
	Reservations *repository.ReservationRepo
}

// NewReservationHandler constructs a new ReservationHandler.  Both
// dependencies must be non-nil.
func NewReservationHandler(controller *booking.Controller, reservations *repository.ReservationRepo) *ReservationHandler {
	if controller == nil || reservations == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Controller: controller, Reservations: reservations}
}

type createReservationReq struct {
	ExperienceID   uint64 `json:"experience_id"`
	Date           string `json:"date"`
	PartySize      int64  `json:"party_size"`
	Notes          string `json:"notes"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Create handles POST /v1/reservations.  Responses:
//
//	201 reservation confirmed (body carries the stored record)
//	400 validation failure (bad/past date, party size < 1)
//	404 unknown experience
//	409 capacity rejected (body carries the remaining hint)
//	503 a store stayed unreachable; safe to resubmit with the same
//	    idempotency key
//
// The idempotency key may come from the Idempotency-Key header or the
// request body; the header wins when both are present.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}
	rec, err := h.Controller.CreateReservation(c.Request().Context(), booking.CreateRequest{
		ExperienceID:   req.ExperienceID,
		UserID:         userID,
		Date:           req.Date,
		PartySize:      req.PartySize,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		var vErr *booking.ValidationError
		var capErr *booking.CapacityRejectedError
		switch {
		case errors.As(err, &vErr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": vErr.Reason})
		case errors.As(err, &capErr):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "insufficient capacity",
				"remaining": capErr.Remaining,
			})
		case errors.Is(err, booking.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		default:
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable, retry with the same idempotency key"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"reservation": rec})
}

// Attend handles POST /v1/reservations/:id/attend.  Marks the party as
// having shown up; the transition is one-way and does not touch
// capacity.  Returns 200 or 404.
func (h *ReservationHandler) Attend(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Controller.MarkAttended(c.Request().Context(), id); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"attended": true})
}

// Cancel handles DELETE /v1/reservations/:id.  Removes the
// reservation and releases its seats back to the experience.  A
// second cancel returns 404.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rec, err := h.Controller.CancelReservation(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cancelled":      true,
		"reservation_id": rec.ID,
		"released_seats": rec.PartySize,
	})
}

// List handles GET /v1/reservations.  Tourists get their own
// reservations.  Guides and admins may instead pass ?experience_id=
// (optionally with ?date=) to review bookings for an experience.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()

	if expParam := c.QueryParam("experience_id"); expParam != "" {
		role := getRole(c)
		if role != "GUIDE" && role != "ADMIN" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		expID, err := strconv.ParseUint(expParam, 10, 64)
		if err != nil || expID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
		}
		var date time.Time
		if d := c.QueryParam("date"); d != "" {
			date, err = booking.ParseDate(d)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
			}
		}
		items, err := h.Reservations.ListByExperienceAndDate(ctx, expID, date)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}

	items, err := h.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reservations/:id.  Returns the reservation when
// it belongs to the caller (or the caller is a guide/admin).
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rec, err := h.Reservations.GetByID(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	role := getRole(c)
	if rec.UserID != userID && role != "GUIDE" && role != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": rec})
}
