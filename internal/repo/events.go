package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"volunteermatch/internal/domain"
)

// EventFilters narrow LatestEvents; empty fields match all.
type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}

// LatestEvents returns audit events newest first. A positive Cursor
// returns only events older than it.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, wrap("list events", err)
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		res = append(res, e)
	}
	return res, wrap("list events", rows.Err())
}
