package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"volunteermatch/internal/domain"
)

const candidateColumns = `id,name,role,settlement,interests_json,background_category,volunteer_days_json,additional_volunteer_days_json,volunteer_frequency,additional_volunteer_frequency,volunteer_hours,additional_volunteer_hours,created_at`

func scanCandidate(s scanner) (domain.Candidate, error) {
	var c domain.Candidate
	var interests, days, extraDays string
	err := s.Scan(&c.ID, &c.Name, &c.Role, &c.Settlement, &interests, &c.WorkBackground.Category, &days, &extraDays,
		&c.VolunteerFrequency, &c.AdditionalVolunteerFrequency, &c.VolunteerHours, &c.AdditionalVolunteerHours, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{interests, &c.Interests}, {days, &c.VolunteerDays}, {extraDays, &c.AdditionalVolunteerDays}} {
		if err := unmarshalDoc(f.raw, f.dst); err != nil {
			return c, fmt.Errorf("decode candidate %s: %w", c.ID, err)
		}
	}
	return c, nil
}

// UpsertCandidate inserts or replaces a user profile. Profiles are owned by
// the identity subsystem; this path exists for imports and fixtures.
func (r Repo) UpsertCandidate(ctx context.Context, c domain.Candidate) error {
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	interests, err := marshalStrings(c.Interests)
	if err != nil {
		return err
	}
	days, err := marshalStrings(c.VolunteerDays)
	if err != nil {
		return err
	}
	extraDays, err := marshalStrings(c.AdditionalVolunteerDays)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO users(`+candidateColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, role=excluded.role, settlement=excluded.settlement,
  interests_json=excluded.interests_json, background_category=excluded.background_category,
  volunteer_days_json=excluded.volunteer_days_json, additional_volunteer_days_json=excluded.additional_volunteer_days_json,
  volunteer_frequency=excluded.volunteer_frequency, additional_volunteer_frequency=excluded.additional_volunteer_frequency,
  volunteer_hours=excluded.volunteer_hours, additional_volunteer_hours=excluded.additional_volunteer_hours`,
		c.ID, c.Name, c.Role, c.Settlement, interests, c.WorkBackground.Category, days, extraDays,
		c.VolunteerFrequency, c.AdditionalVolunteerFrequency, c.VolunteerHours, c.AdditionalVolunteerHours, c.CreatedAt)
	return wrap("upsert candidate", err)
}

func (r Repo) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	c, err := scanCandidate(r.DB.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM users WHERE id=?`, id))
	return c, wrap("get candidate", err)
}

// ListCandidates returns every user with the given role (all users when
// role is empty) in insertion order.
func (r Repo) ListCandidates(ctx context.Context, role string) ([]domain.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY rowid ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list candidates", err)
	}
	defer rows.Close()
	var res []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, wrap("list candidates", err)
		}
		res = append(res, c)
	}
	return res, wrap("list candidates", rows.Err())
}
