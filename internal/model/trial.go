package model

import "time"

// TrialStatus tracks the asynchronous image generation of a Trial.
//
//	pending ──► completed   (image generated)
//	   └──────► failed      (generator error, timeout, or queue overflow)
//
// completed and failed are terminal.
type TrialStatus string

const (
	TrialPending   TrialStatus = "pending"
	TrialCompleted TrialStatus = "completed"
	TrialFailed    TrialStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TrialStatus) Terminal() bool {
	return s == TrialCompleted || s == TrialFailed
}

// Trial is one generated (model, fabric) try-on for a user. ImageURL stays
// empty until the trial completes.
type Trial struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	ModelID   string      `json:"modelId"`
	FabricID  string      `json:"fabricId"`
	ImageURL  string      `json:"imageUrl"`
	Status    TrialStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}
