package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/andestours/experience-booking/internal/model"
	"github.com/andestours/experience-booking/internal/repository"
)

// fakeRatingStore serves canned ratings keyed by filter.
type fakeRatingStore struct {
	byGuide map[uint64][]model.Rating
	all     []model.Rating
}

func (f *fakeRatingStore) Create(ctx context.Context, rt *model.Rating) error {
	rt.ID = uint64(len(f.all) + 1)
	f.all = append(f.all, *rt)
	return nil
}

func (f *fakeRatingStore) GetByID(ctx context.Context, id uint64) (model.Rating, error) {
	for _, rt := range f.all {
		if rt.ID == id {
			return rt, nil
		}
	}
	return model.Rating{}, repository.ErrRatingNotFound
}

func (f *fakeRatingStore) List(ctx context.Context, experienceID uint64) ([]model.Rating, error) {
	if experienceID == 0 {
		return f.all, nil
	}
	out := []model.Rating{}
	for _, rt := range f.all {
		if rt.ExperienceID == experienceID {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (f *fakeRatingStore) ListByGuide(ctx context.Context, guideID uint64) ([]model.Rating, error) {
	return f.byGuide[guideID], nil
}

func (f *fakeRatingStore) Delete(ctx context.Context, id uint64) error { return nil }

func ratingListRequest(t *testing.T, h *RatingHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	return rec
}

func TestRatingListGuideFilter(t *testing.T) {
	h := NewRatingHandler(&fakeRatingStore{
		byGuide: map[uint64][]model.Rating{
			7: {{ID: 1, ExperienceID: 3, UserID: 9, Score: 5, Comment: "great hike"}},
		},
		all: []model.Rating{
			{ID: 1, ExperienceID: 3, UserID: 9, Score: 5},
			{ID: 2, ExperienceID: 8, UserID: 4, Score: 2},
		},
	})

	rec := ratingListRequest(t, h, "/v1/ratings?guide=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Ratings []model.Rating `json:"ratings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Ratings) != 1 || body.Ratings[0].ExperienceID != 3 {
		t.Fatalf("ratings = %+v, want the guide's single rating", body.Ratings)
	}
}

func TestRatingListInvalidGuide(t *testing.T) {
	h := NewRatingHandler(&fakeRatingStore{})

	for _, target := range []string{"/v1/ratings?guide=abc", "/v1/ratings?guide=0"} {
		rec := ratingListRequest(t, h, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
