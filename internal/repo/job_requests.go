package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"volunteermatch/internal/domain"
)

const jobRequestColumns = `id,title,description,location,volunteer_field,professional_background,frequency,timing,days_json,status,match_results_json,assigned_seniors_json,created_by,created_at,updated_at,version`

type scanner interface {
	Scan(dest ...any) error
}

func scanJobRequest(s scanner) (domain.JobRequest, error) {
	var j domain.JobRequest
	var status, days, matches, assigned string
	err := s.Scan(&j.ID, &j.Title, &j.Description, &j.Location, &j.VolunteerField, &j.ProfessionalBackground,
		&j.Frequency, &j.Timing, &days, &status, &matches, &assigned, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt, &j.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	j.Status = domain.Status(status)
	if err := unmarshalDoc(days, &j.Days); err != nil {
		return j, fmt.Errorf("decode days: %w", err)
	}
	if err := unmarshalDoc(matches, &j.MatchResults); err != nil {
		return j, fmt.Errorf("decode match results: %w", err)
	}
	if err := unmarshalDoc(assigned, &j.AssignedSeniors); err != nil {
		return j, fmt.Errorf("decode assigned seniors: %w", err)
	}
	return j, nil
}

type jobRequestDocs struct {
	days, matches, assigned string
}

func encodeJobRequest(j domain.JobRequest) (jobRequestDocs, error) {
	var d jobRequestDocs
	var err error
	if d.days, err = marshalStrings(j.Days); err != nil {
		return d, err
	}
	matches := j.MatchResults
	if matches == nil {
		matches = []domain.MatchResult{}
	}
	if d.matches, err = marshalDoc(matches); err != nil {
		return d, err
	}
	assigned := j.AssignedSeniors
	if assigned == nil {
		assigned = []domain.Assignment{}
	}
	if d.assigned, err = marshalDoc(assigned); err != nil {
		return d, err
	}
	return d, nil
}

// InsertJobRequest stores a new job request at version 1. Status history
// entries are appended separately.
func (r Repo) InsertJobRequest(ctx context.Context, tx *sql.Tx, j domain.JobRequest) error {
	d, err := encodeJobRequest(j)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO job_requests(`+jobRequestColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1)`,
		j.ID, j.Title, j.Description, j.Location, j.VolunteerField, j.ProfessionalBackground, j.Frequency, j.Timing,
		d.days, string(j.Status), d.matches, d.assigned, j.CreatedBy, j.CreatedAt, j.UpdatedAt)
	return wrap("insert job request", err)
}

// UpdateJobRequest writes j if the stored version still equals j.Version
// and returns the new version.
func (r Repo) UpdateJobRequest(ctx context.Context, tx *sql.Tx, j domain.JobRequest) (int64, error) {
	d, err := encodeJobRequest(j)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE job_requests SET title=?,description=?,location=?,volunteer_field=?,professional_background=?,frequency=?,timing=?,days_json=?,status=?,match_results_json=?,assigned_seniors_json=?,updated_at=?,version=version+1 WHERE id=? AND version=?`,
		j.Title, j.Description, j.Location, j.VolunteerField, j.ProfessionalBackground, j.Frequency, j.Timing,
		d.days, string(j.Status), d.matches, d.assigned, j.UpdatedAt, j.ID, j.Version)
	if err != nil {
		return 0, wrap("update job request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM job_requests WHERE id=?`, j.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, wrap("update job request", err)
		}
		return 0, ErrConflict
	}
	return j.Version + 1, nil
}

func (r Repo) GetJobRequest(ctx context.Context, id string) (domain.JobRequest, error) {
	return getJobRequest(ctx, r.DB, id)
}

// GetJobRequestTx reads through tx so the caller sees its own writes.
func (r Repo) GetJobRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.JobRequest, error) {
	return getJobRequest(ctx, tx, id)
}

func getJobRequest(ctx context.Context, q queryer, id string) (domain.JobRequest, error) {
	j, err := scanJobRequest(q.QueryRowContext(ctx, `SELECT `+jobRequestColumns+` FROM job_requests WHERE id=?`, id))
	if err != nil {
		return j, wrap("get job request", err)
	}
	j.StatusHistory, err = listStatusHistory(ctx, q, id)
	if err != nil {
		return j, err
	}
	return j, nil
}

func (r Repo) DeleteJobRequest(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM job_requests WHERE id=?`, id)
	if err != nil {
		return wrap("delete job request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// JobRequestFilters are optional equality filters; empty fields match all.
type JobRequestFilters struct {
	Status         string
	Location       string
	VolunteerField string
	Limit          int
}

// ListJobRequests returns matching job requests, newest first.
func (r Repo) ListJobRequests(ctx context.Context, f JobRequestFilters) ([]domain.JobRequest, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Location != "" {
		clauses = append(clauses, "location=?")
		args = append(args, f.Location)
	}
	if f.VolunteerField != "" {
		clauses = append(clauses, "volunteer_field=?")
		args = append(args, f.VolunteerField)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + jobRequestColumns + ` FROM job_requests ` + where + ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list job requests", err)
	}
	var res []domain.JobRequest
	for rows.Next() {
		j, err := scanJobRequest(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("list job requests", err)
		}
		res = append(res, j)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrap("list job requests", err)
	}
	rows.Close()
	for i := range res {
		res[i].StatusHistory, err = listStatusHistory(ctx, r.DB, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// AppendStatusHistory adds one entry. History rows are never updated.
func (r Repo) AppendStatusHistory(ctx context.Context, tx *sql.Tx, jobRequestID string, e domain.StatusHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO status_history(job_request_id,status,ts,changed_by,notes) VALUES (?,?,?,?,?)`,
		jobRequestID, string(e.Status), e.Timestamp, e.ChangedBy, e.Notes)
	return wrap("append status history", err)
}

func listStatusHistory(ctx context.Context, q queryer, jobRequestID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT status,ts,changed_by,notes FROM status_history WHERE job_request_id=? ORDER BY seq ASC`, jobRequestID)
	if err != nil {
		return nil, wrap("list status history", err)
	}
	defer rows.Close()
	res := []domain.StatusHistoryEntry{}
	for rows.Next() {
		var e domain.StatusHistoryEntry
		var status string
		if err := rows.Scan(&status, &e.Timestamp, &e.ChangedBy, &e.Notes); err != nil {
			return nil, wrap("list status history", err)
		}
		e.Status = domain.Status(status)
		res = append(res, e)
	}
	return res, wrap("list status history", rows.Err())
}
