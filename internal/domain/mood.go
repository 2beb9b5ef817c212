package domain

import "time"

type AssessmentType string

const (
	AssessmentPre  AssessmentType = "pre"
	AssessmentPost AssessmentType = "post"
)

// MoodAssessment se crea una vez por consulta pre/post y nunca se modifica.
type MoodAssessment struct {
	ID             string         `json:"id"`
	ParticipantID  string         `json:"participant_id"`
	SessionID      string         `json:"session_id,omitempty"`
	Rating         int            `json:"mood_rating"`
	AssessmentType AssessmentType `json:"assessment_type"`
	Label          string         `json:"mood_label"`
	Emoji          string         `json:"emoji"`
	TrustRating    *int           `json:"trust_rating,omitempty"`
	TrustLabel     string         `json:"trust_label,omitempty"`
	AttitudeRating *int           `json:"attitude_rating,omitempty"`
	AttitudeLabel  string         `json:"attitude_label,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
