package domain

import "fmt"

// Status is the lifecycle state of a job request.
type Status string

const (
	StatusActive     Status = "Active"
	StatusInProgress Status = "In Progress"
	StatusFulfilled  Status = "Fulfilled"
	StatusArchived   Status = "Archived"
)

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusActive, StatusInProgress, StatusFulfilled, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown job request status %q", s)
}

// AssignmentStatus is a candidate's position in the invite/response flow.
type AssignmentStatus string

const (
	AssignmentInvited  AssignmentStatus = "Invited"
	AssignmentAccepted AssignmentStatus = "Accepted"
	AssignmentDeclined AssignmentStatus = "Declined"
)

// ParseResponse accepts only the two terminal answers a candidate can give.
func ParseResponse(s string) (AssignmentStatus, error) {
	st := AssignmentStatus(s)
	switch st {
	case AssignmentAccepted, AssignmentDeclined:
		return st, nil
	}
	return "", fmt.Errorf("unknown invitation response %q", s)
}

// Terminal reports whether the candidate has answered the invitation.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentAccepted || s == AssignmentDeclined
}

const RoleRetiree = "retiree"

type JobRequest struct {
	ID                     string               `json:"id"`
	Title                  string               `json:"title"`
	Description            string               `json:"description"`
	Location               string               `json:"location"`
	VolunteerField         string               `json:"volunteer_field"`
	ProfessionalBackground string               `json:"professional_background,omitempty"`
	Frequency              string               `json:"frequency,omitempty"`
	Timing                 string               `json:"timing,omitempty"`
	Days                   []string             `json:"days"`
	Status                 Status               `json:"status" enum:"Active,In Progress,Fulfilled,Archived"`
	StatusHistory          []StatusHistoryEntry `json:"status_history"`
	MatchResults           []MatchResult        `json:"match_results"`
	AssignedSeniors        []Assignment         `json:"assigned_seniors"`
	CreatedBy              string               `json:"created_by"`
	CreatedAt              string               `json:"created_at" format:"date-time"`
	UpdatedAt              string               `json:"updated_at" format:"date-time"`
	Version                int64                `json:"version"`
}

// Assignment returns the entry for candidateID, if any.
func (j JobRequest) Assignment(candidateID string) (Assignment, bool) {
	for _, a := range j.AssignedSeniors {
		if a.CandidateID == candidateID {
			return a, true
		}
	}
	return Assignment{}, false
}

type StatusHistoryEntry struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp" format:"date-time"`
	ChangedBy string `json:"changed_by"`
	Notes     string `json:"notes"`
}

type Assignment struct {
	CandidateID string           `json:"candidate_id"`
	Status      AssignmentStatus `json:"status" enum:"Invited,Accepted,Declined"`
	AssignedAt  string           `json:"assigned_at" format:"date-time"`
	ResponseAt  string           `json:"response_at,omitempty" format:"date-time"`
}

type MatchResult struct {
	CandidateID         string      `json:"candidate_id"`
	CandidateName       string      `json:"candidate_name"`
	CandidateLocation   string      `json:"candidate_location"`
	CandidateBackground string      `json:"candidate_background"`
	CandidateInterests  []string    `json:"candidate_interests"`
	CandidateDays       []string    `json:"candidate_days"`
	Score               int         `json:"score"`
	ScoreDetails        ScoreDetail `json:"score_details"`
	MatchedAt           string      `json:"matched_at" format:"date-time"`
}

// ScoreDetail is the itemized result of scoring one candidate against one
// job request. TotalScore is the plain sum of the six components.
type ScoreDetail struct {
	LocationScore     int `json:"location_score"`
	InterestsScore    int `json:"interests_score"`
	BackgroundScore   int `json:"background_score"`
	AvailabilityScore int `json:"availability_score"`
	FrequencyScore    int `json:"frequency_score"`
	TimingScore       int `json:"timing_score"`
	TotalScore        int `json:"total_score"`
}

type WorkBackground struct {
	Category string `json:"category,omitempty" yaml:"category"`
}

// Candidate is a registered user profile. Only users with role "retiree"
// take part in matching.
type Candidate struct {
	ID                           string         `json:"id" yaml:"id"`
	Name                         string         `json:"name" yaml:"name"`
	Role                         string         `json:"role" yaml:"role"`
	Settlement                   string         `json:"settlement,omitempty" yaml:"settlement"`
	Interests                    []string       `json:"interests" yaml:"interests"`
	WorkBackground               WorkBackground `json:"work_background" yaml:"work_background"`
	VolunteerDays                []string       `json:"volunteer_days" yaml:"volunteer_days"`
	AdditionalVolunteerDays      []string       `json:"additional_volunteer_days" yaml:"additional_volunteer_days"`
	VolunteerFrequency           string         `json:"volunteer_frequency,omitempty" yaml:"volunteer_frequency"`
	AdditionalVolunteerFrequency string         `json:"additional_volunteer_frequency,omitempty" yaml:"additional_volunteer_frequency"`
	VolunteerHours               string         `json:"volunteer_hours,omitempty" yaml:"volunteer_hours"`
	AdditionalVolunteerHours     string         `json:"additional_volunteer_hours,omitempty" yaml:"additional_volunteer_hours"`
	CreatedAt                    string         `json:"created_at" yaml:"-" format:"date-time"`
}

// EffectiveDays falls back to the additional day set when the primary one is empty.
func (c Candidate) EffectiveDays() []string {
	if len(c.VolunteerDays) > 0 {
		return c.VolunteerDays
	}
	return c.AdditionalVolunteerDays
}

func (c Candidate) EffectiveFrequency() string {
	if c.VolunteerFrequency != "" {
		return c.VolunteerFrequency
	}
	return c.AdditionalVolunteerFrequency
}

func (c Candidate) EffectiveHours() string {
	if c.VolunteerHours != "" {
		return c.VolunteerHours
	}
	return c.AdditionalVolunteerHours
}

type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Link      string `json:"link,omitempty"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Read      bool   `json:"read"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
