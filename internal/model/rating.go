package model

import "time"

// Rating is a tourist's review of an experience.  Ratings carry no
// cross-record invariant and are plain CRUD records.
//
// Fields:
//  ID           – primary key identifier.
//  ExperienceID – experience being rated.
//  UserID       – author of the rating.
//  Comment      – optional free-text comment.
//  Score        – star rating from 1 to 5.
//  CreatedAt    – creation timestamp.
type Rating struct {
	ID           uint64    `json:"id"`            // ratings.id
	ExperienceID uint64    `json:"experience_id"` // ratings.experience_id
	UserID       uint64    `json:"user_id"`       // ratings.user_id
	Comment      string    `json:"comment"`       // ratings.comment
	Score        int       `json:"score"`         // ratings.score
	CreatedAt    time.Time `json:"created_at"`    // ratings.created_at
}
