package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/andestours/experience-booking/internal/capacity"
	"github.com/andestours/experience-booking/internal/model"
	"github.com/andestours/experience-booking/internal/repository"
)

// ExperienceHandler manages the guide-owned experience catalog.  The
// metadata row lives in MySQL and the live capacity record lives in
// the capacity store; create/update/delete keep the two in step.  All
// mutating methods assume JWT authentication and role validation have
// already been performed by middleware.
type ExperienceHandler struct {
	Experiences *repository.ExperienceRepo
	Capacity    capacity.Store
}

// NewExperienceHandler constructs a new ExperienceHandler with the
// provided dependencies.  All dependencies must be non-nil.
func NewExperienceHandler(experiences *repository.ExperienceRepo, capStore capacity.Store) *ExperienceHandler {
	if experiences == nil || capStore == nil {
		panic("nil dependency passed to NewExperienceHandler")
	}
	return &ExperienceHandler{Experiences: experiences, Capacity: capStore}
}

type experienceReq struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PriceCents    uint32 `json:"price_cents"`
	CapacityTotal int64  `json:"capacity_total"`
}

// Create handles POST /v1/experiences.  The metadata row is written
// first, then the capacity record is initialized; a failed capacity
// init rolls the metadata back so no experience exists without a
// bookable capacity record.
func (h *ExperienceHandler) Create(c echo.Context) error {
	guideID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.CapacityTotal < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity_total must be at least 1"})
	}
	ctx := c.Request().Context()
	exp := model.Experience{
		Title:         req.Title,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		GuideID:       guideID,
		CapacityTotal: req.CapacityTotal,
	}
	if err := h.Experiences.Create(ctx, &exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create experience"})
	}
	if err := h.Capacity.Init(ctx, exp.ID, req.CapacityTotal); err != nil {
		if delErr := h.Experiences.Delete(ctx, exp.ID); delErr != nil {
			log.Printf("experience: rollback of %d after capacity init failure also failed: %v", exp.ID, delErr)
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "capacity store unavailable"})
	}
	exp.CapacityRemaining = req.CapacityTotal
	return c.JSON(http.StatusCreated, echo.Map{"experience": exp})
}

// List handles GET /v1/experiences.  The optional ?guide= query
// filters to one guide's experiences.  Remaining capacity is read
// best effort from the capacity store; a missing record reports
// remaining equal to -1 so clients can tell "unknown" from "full".
func (h *ExperienceHandler) List(c echo.Context) error {
	var guideID uint64
	if g := c.QueryParam("guide"); g != "" {
		n, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guide id"})
		}
		guideID = n
	}
	ctx := c.Request().Context()
	items, err := h.Experiences.List(ctx, guideID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load experiences"})
	}
	for i := range items {
		rec, err := h.Capacity.Get(ctx, items[i].ID)
		if err != nil {
			items[i].CapacityRemaining = -1
			continue
		}
		items[i].CapacityRemaining = rec.Remaining
	}
	return c.JSON(http.StatusOK, echo.Map{"experiences": items})
}

// Get handles GET /v1/experiences/:id.
func (h *ExperienceHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
	}
	ctx := c.Request().Context()
	exp, err := h.Experiences.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExperienceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load experience"})
	}
	if rec, err := h.Capacity.Get(ctx, id); err == nil {
		exp.CapacityRemaining = rec.Remaining
	} else {
		exp.CapacityRemaining = -1
	}
	return c.JSON(http.StatusOK, echo.Map{"experience": exp})
}

// Update handles PUT /v1/experiences/:id.  Only the owning guide or
// an admin may update.  When capacity_total changes, the capacity
// record is reseeded preserving already-booked seats.
func (h *ExperienceHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
	}
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.CapacityTotal < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity_total must be at least 1"})
	}
	ctx := c.Request().Context()
	existing, err := h.Experiences.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExperienceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load experience"})
	}
	if existing.GuideID != userID && getRole(c) != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	existing.Title = req.Title
	existing.Description = req.Description
	existing.PriceCents = req.PriceCents
	capacityChanged := existing.CapacityTotal != req.CapacityTotal
	existing.CapacityTotal = req.CapacityTotal
	if err := h.Experiences.Update(ctx, &existing); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update experience"})
	}
	if capacityChanged {
		if err := h.Capacity.Init(ctx, id, req.CapacityTotal); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "capacity store unavailable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"experience": existing})
}

// Delete handles DELETE /v1/experiences/:id.  Removes both the
// metadata row and the capacity record.  Existing reservations keep
// their rows; the admission controller tolerates reservations that
// reference a deleted experience.
func (h *ExperienceHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
	}
	ctx := c.Request().Context()
	existing, err := h.Experiences.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExperienceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load experience"})
	}
	if existing.GuideID != userID && getRole(c) != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Experiences.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete experience"})
	}
	if err := h.Capacity.Delete(ctx, id); err != nil {
		log.Printf("experience: capacity record cleanup for %d failed: %v", id, err)
	}
	return c.NoContent(http.StatusNoContent)
}
