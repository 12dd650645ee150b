package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/andestours/experience-booking/internal/model"
	"github.com/andestours/experience-booking/internal/repository"
)

// RatingStore is the slice of the ratings repository the handler
// needs.  Implemented by *repository.RatingRepo.
type RatingStore interface {
	Create(ctx context.Context, rt *model.Rating) error
	GetByID(ctx context.Context, id uint64) (model.Rating, error)
	List(ctx context.Context, experienceID uint64) ([]model.Rating, error)
	ListByGuide(ctx context.Context, guideID uint64) ([]model.Rating, error)
	Delete(ctx context.Context, id uint64) error
}

// RatingHandler manages experience reviews.  Ratings are plain CRUD
// with no capacity involvement.
type RatingHandler struct {
	Ratings RatingStore
}

// NewRatingHandler constructs a new RatingHandler.
func NewRatingHandler(ratings RatingStore) *RatingHandler {
	if ratings == nil {
		panic("nil repository passed to NewRatingHandler")
	}
	return &RatingHandler{Ratings: ratings}
}

type ratingReq struct {
	ExperienceID uint64 `json:"experience_id"`
	Comment      string `json:"comment"`
	Score        int    `json:"score"`
}

// Create handles POST /v1/ratings.  Scores run from 1 to 5.
func (h *RatingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req ratingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ExperienceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "experience_id is required"})
	}
	if req.Score < 1 || req.Score > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be between 1 and 5"})
	}
	rt := model.Rating{
		ExperienceID: req.ExperienceID,
		UserID:       userID,
		Comment:      req.Comment,
		Score:        req.Score,
	}
	if err := h.Ratings.Create(c.Request().Context(), &rt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create rating"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"rating": rt})
}

// List handles GET /v1/ratings.  ?experience_id= filters to one
// experience; ?guide= gathers the ratings across every experience the
// guide runs.  The guide filter wins when both are present.
func (h *RatingHandler) List(c echo.Context) error {
	if g := c.QueryParam("guide"); g != "" {
		guideID, err := strconv.ParseUint(g, 10, 64)
		if err != nil || guideID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guide id"})
		}
		items, err := h.Ratings.ListByGuide(c.Request().Context(), guideID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ratings"})
		}
		return c.JSON(http.StatusOK, echo.Map{"ratings": items})
	}
	var expID uint64
	if p := c.QueryParam("experience_id"); p != "" {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
		}
		expID = n
	}
	items, err := h.Ratings.List(c.Request().Context(), expID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ratings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ratings": items})
}

// Get handles GET /v1/ratings/:id.
func (h *RatingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rating id"})
	}
	rt, err := h.Ratings.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRatingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rating"})
	}
	return c.JSON(http.StatusOK, echo.Map{"rating": rt})
}

// Delete handles DELETE /v1/ratings/:id.  Only the author or an admin
// may delete a rating.
func (h *RatingHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rating id"})
	}
	ctx := c.Request().Context()
	rt, err := h.Ratings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRatingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rating"})
	}
	if rt.UserID != userID && getRole(c) != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Ratings.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete rating"})
	}
	return c.NoContent(http.StatusNoContent)
}
