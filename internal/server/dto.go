package server

import (
	"encoding/json"

	"volunteermatch/internal/domain"
	"volunteermatch/internal/engine"
)

// Request payloads

type CreateJobRequestBody struct {
	Title                  string   `json:"title" minLength:"1"`
	Description            string   `json:"description,omitempty"`
	Location               string   `json:"location,omitempty"`
	VolunteerField         string   `json:"volunteer_field,omitempty"`
	ProfessionalBackground string   `json:"professional_background,omitempty"`
	Frequency              string   `json:"frequency,omitempty"`
	Timing                 string   `json:"timing,omitempty"`
	Days                   []string `json:"days,omitempty"`
}

type UpdateJobRequestBody struct {
	Title                  *string   `json:"title,omitempty"`
	Description            *string   `json:"description,omitempty"`
	Location               *string   `json:"location,omitempty"`
	VolunteerField         *string   `json:"volunteer_field,omitempty"`
	ProfessionalBackground *string   `json:"professional_background,omitempty"`
	Frequency              *string   `json:"frequency,omitempty"`
	Timing                 *string   `json:"timing,omitempty"`
	Days                   *[]string `json:"days,omitempty"`
	Status                 *string   `json:"status,omitempty" enum:"Active,In Progress,Fulfilled,Archived"`
	StatusNotes            *string   `json:"status_notes,omitempty"`
}

type InviteBody struct {
	CandidateID string `json:"candidate_id" minLength:"1"`
}

type RespondBody struct {
	Response string `json:"response" enum:"Accepted,Declined"`
}

// Response payloads

type (
	jobRequestBody   = domain.JobRequest
	candidateBody    = domain.Candidate
	notificationBody = domain.Notification
)

type JobRequestList struct {
	Items []domain.JobRequest `json:"items"`
}

type MatchResultList struct {
	Items []domain.MatchResult `json:"items"`
}

type CandidateList struct {
	Items []domain.Candidate `json:"items"`
}

type NotificationList struct {
	Items []domain.Notification `json:"items"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func (b CreateJobRequestBody) input(actorID string) engine.JobRequestInput {
	return engine.JobRequestInput{
		Title:                  b.Title,
		Description:            b.Description,
		Location:               b.Location,
		VolunteerField:         b.VolunteerField,
		ProfessionalBackground: b.ProfessionalBackground,
		Frequency:              b.Frequency,
		Timing:                 b.Timing,
		Days:                   b.Days,
		ActorID:                actorID,
	}
}

func (b UpdateJobRequestBody) patch(id, actorID string) engine.JobRequestPatch {
	return engine.JobRequestPatch{
		ID:                     id,
		Title:                  b.Title,
		Description:            b.Description,
		Location:               b.Location,
		VolunteerField:         b.VolunteerField,
		ProfessionalBackground: b.ProfessionalBackground,
		Frequency:              b.Frequency,
		Timing:                 b.Timing,
		Days:                   b.Days,
		Status:                 b.Status,
		StatusNotes:            b.StatusNotes,
		ActorID:                actorID,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
