// Package models defines the data structures for the video analysis pipeline.
package models

import "time"

// SessionStatus is the lifecycle state of a coaching Session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusUploaded   SessionStatus = "uploaded"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusReady      SessionStatus = "ready"
	SessionStatusFailed     SessionStatus = "failed"
)

// IsTerminal reports whether the session will not transition further on its own.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusReady || s == SessionStatusFailed
}

// Session is the user-visible container for one uploaded video and its analysis.
type Session struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	Title           string        `json:"title"`
	PlayerIDs       []string      `json:"player_ids"`
	Notes           string        `json:"notes,omitempty"`
	AnalysisContext string        `json:"analysis_context,omitempty"` // default-mode hint
	CameraView      string        `json:"camera_view,omitempty"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
