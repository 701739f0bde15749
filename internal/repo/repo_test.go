package repo

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteermatch/internal/db"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/migrate"
)

func setupRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.OpenPath(filepath.Join(t.TempDir(), "vm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Repo{DB: conn}
}

func insertJob(t *testing.T, r Repo, j domain.JobRequest) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, r.InsertJobRequest(ctx, tx, j))
	require.NoError(t, r.AppendStatusHistory(ctx, tx, j.ID, domain.StatusHistoryEntry{
		Status: j.Status, Timestamp: j.CreatedAt, ChangedBy: j.CreatedBy, Notes: "Job request created",
	}))
	require.NoError(t, tx.Commit())
}

func sampleJob(id, createdAt string) domain.JobRequest {
	return domain.JobRequest{
		ID: id, Title: "Escort", Location: "Springfield", VolunteerField: "Medical Escort",
		Days: []string{"Monday"}, Status: domain.StatusActive, CreatedBy: "admin",
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
}

func TestJobRequestRoundTrip(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	insertJob(t, r, sampleJob("j1", "2024-01-01T00:00:00Z"))

	got, err := r.GetJobRequest(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []string{"Monday"}, got.Days)
	assert.Empty(t, got.MatchResults)
	assert.NotNil(t, got.MatchResults)
	assert.NotNil(t, got.AssignedSeniors)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, domain.StatusActive, got.StatusHistory[0].Status)

	_, err = r.GetJobRequest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateJobRequestVersionConflict(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	insertJob(t, r, sampleJob("j1", "2024-01-01T00:00:00Z"))

	stale, err := r.GetJobRequest(ctx, "j1")
	require.NoError(t, err)

	tx, err := r.BeginTx(ctx)
	require.NoError(t, err)
	fresh := stale
	fresh.Title = "Updated"
	v, err := r.UpdateJobRequest(ctx, tx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	require.NoError(t, tx.Commit())

	tx, err = r.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = r.UpdateJobRequest(ctx, tx, stale)
	assert.ErrorIs(t, err, ErrConflict)

	stale.ID = "missing"
	_, err = r.UpdateJobRequest(ctx, tx, stale)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListJobRequestsFiltersAndOrder(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	insertJob(t, r, sampleJob("old", "2024-01-01T00:00:00Z"))
	other := sampleJob("other", "2024-01-02T00:00:00Z")
	other.Location = "Riverside"
	insertJob(t, r, other)
	insertJob(t, r, sampleJob("new", "2024-01-03T00:00:00Z"))
	insertJob(t, r, sampleJob("tie", "2024-01-03T00:00:00Z"))

	all, err := r.ListJobRequests(ctx, JobRequestFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"tie", "new", "other", "old"}, ids(all))

	spring, err := r.ListJobRequests(ctx, JobRequestFilters{Location: "Springfield", Status: string(domain.StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, []string{"tie", "new", "old"}, ids(spring))
	assert.Len(t, spring[0].StatusHistory, 1)

	none, err := r.ListJobRequests(ctx, JobRequestFilters{VolunteerField: "Gardening"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteJobRequestCascadesHistory(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	insertJob(t, r, sampleJob("j1", "2024-01-01T00:00:00Z"))

	tx, err := r.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, r.DeleteJobRequest(ctx, tx, "j1"))
	require.NoError(t, tx.Commit())

	var n int
	require.NoError(t, r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM status_history WHERE job_request_id='j1'`).Scan(&n))
	assert.Zero(t, n)

	tx, err = r.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	assert.ErrorIs(t, r.DeleteJobRequest(ctx, tx, "j1"), ErrNotFound)
}

func TestCandidatesByRoleInInsertionOrder(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, r.UpsertCandidate(ctx, domain.Candidate{ID: "b", Name: "Bea", Role: domain.RoleRetiree, Interests: []string{"Gardening"}}))
	require.NoError(t, r.UpsertCandidate(ctx, domain.Candidate{ID: "admin", Name: "Ada", Role: "admin"}))
	require.NoError(t, r.UpsertCandidate(ctx, domain.Candidate{ID: "a", Name: "Abe", Role: domain.RoleRetiree, AdditionalVolunteerDays: []string{"Friday"}}))
	require.NoError(t, r.UpsertCandidate(ctx, domain.Candidate{ID: "b", Name: "Bea R.", Role: domain.RoleRetiree}))

	got, err := r.ListCandidates(ctx, domain.RoleRetiree)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "Bea R.", got[0].Name)
	assert.Equal(t, []string{"Friday"}, got[1].AdditionalVolunteerDays)

	c, err := r.GetCandidate(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", c.Role)

	_, err = r.GetCandidate(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifications(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, r.InsertNotification(ctx, domain.Notification{ID: "n1", UserID: "u1", Message: "hi", Type: "job_invitation", CreatedBy: "admin", CreatedAt: "2024-01-01T00:00:00Z"}))
	require.NoError(t, r.InsertNotification(ctx, domain.Notification{ID: "n2", UserID: "u1", Message: "yo", Type: "job_status_changed", Link: "/job-requests/j1", CreatedBy: "admin", CreatedAt: "2024-01-02T00:00:00Z"}))

	got, err := r.ListNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID)
	assert.Equal(t, "/job-requests/j1", got[0].Link)
	assert.False(t, got[0].Read)
}

func TestStoreErrorsAreTaggedUpstream(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	r := Repo{DB: conn}

	driverErr := errors.New("disk I/O error")
	mock.ExpectQuery(`SELECT .* FROM job_requests WHERE id=\?`).WithArgs("j1").WillReturnError(driverErr)
	_, err = r.GetJobRequest(context.Background(), "j1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrNotFound)
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get job request", se.Op)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id=\?`).WithArgs("c1").WillReturnError(sql.ErrNoRows)
	_, err = r.GetCandidate(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUpstream)

	mock.ExpectQuery(`SELECT .* FROM users`).WillReturnError(driverErr)
	_, err = r.ListCandidates(context.Background(), domain.RoleRetiree)
	assert.ErrorIs(t, err, ErrUpstream)
	require.NoError(t, mock.ExpectationsWereMet())
}

func ids(js []domain.JobRequest) []string {
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.ID
	}
	return out
}
