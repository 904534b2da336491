// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// ReservedCategory is the pseudo-category used by listings; it never names real images.
const ReservedCategory = "all"

// Image is one picture in the shared pool.
type Image struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	OwnerID  int64  `json:"owner_id"`
	URL      string `json:"url,omitempty"`
}

// Ranking is one user's tier assignment for a category.
// Payload holds the raw tier -> image id lists as stored by the tier editor.
type Ranking struct {
	ID       int64
	OwnerID  int64
	Name     string
	Category string
	Groups   []int64 // groups the ranking is shared with
	Payload  []byte
}

// User is the identity record the directory resolves.
type User struct {
	ID          int64
	DisplayName string
	AvatarURL   string
}

// Identity is what a viewer is allowed to see about a ranking owner.
type Identity struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Revealed    bool   `json:"revealed"`
}

// RatingSet is one ranking's image -> ordinal rating map.
type RatingSet struct {
	RankingID int64
	OwnerID   int64
	Ratings   map[int64]int
}

// NormalizeCategory trims and lowercases a category name.
func NormalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AnalysisRequest names the category a viewer wants analysed.
type AnalysisRequest struct {
	Viewer   int64  `json:"viewer"`
	Admin    bool   `json:"admin"`
	Category string `json:"category"`
	Themes   int    `json:"themes,omitempty"`
}

// Job is an analysis request queued for background processing.
type Job struct {
	ID          string
	Request     AnalysisRequest
	SubmittedAt time.Time
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

// Job lifecycle states.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)
