package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the lifecycle service and the orchestrator.
const (
	JobRequestCreated       = "job_request.created"
	JobRequestUpdated       = "job_request.updated"
	JobRequestStatusChanged = "job_request.status_changed"
	JobRequestDeleted       = "job_request.deleted"
	JobRequestMatched       = "job_request.matched"
	CandidateInvited        = "job_request.candidate_invited"
	CandidateResponded      = "job_request.candidate_responded"

	KindJobRequest = "job_request"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an audit event inside tx so it commits with the change it
// describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
