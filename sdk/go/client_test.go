package volunteermatchsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteermatch/internal/config"
	"volunteermatch/internal/db"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/engine"
	"volunteermatch/internal/migrate"
	"volunteermatch/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default())
	_, err = e.ImportCandidates(context.Background(), []domain.Candidate{
		{ID: "s1", Name: "Avi", Settlement: "Tel Aviv", Interests: []string{"Cooking"}},
		{ID: "s2", Name: "Dina", Settlement: "Tel Aviv"},
	})
	require.NoError(t, err)
	h, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{AllowActorHeader: true}})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	c.ActorID = "admin"
	return c
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	j, err := c.CreateJobRequest(ctx, CreateJobRequestInput{Title: "Soup kitchen", Location: "Tel Aviv", VolunteerField: "Cooking"})
	require.NoError(t, err)
	require.Len(t, j.MatchResults, 2)
	assert.Equal(t, "s1", j.MatchResults[0].CandidateID)

	results, err := c.RunMatching(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = c.Invite(ctx, j.ID, "s1")
	require.NoError(t, err)
	j, err = c.Respond(ctx, j.ID, "s1", "Accepted")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", j.Status)

	notes := "wrapped up"
	status := "Fulfilled"
	j, err = c.UpdateJobRequest(ctx, j.ID, UpdateJobRequestInput{Status: &status, StatusNotes: &notes})
	require.NoError(t, err)
	require.Len(t, j.StatusHistory, 3)
	assert.Equal(t, "wrapped up", j.StatusHistory[2].Notes)

	list, err := c.ListJobRequests(ctx, ListFilters{Status: "Fulfilled"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	ins, err := c.Inspect(ctx, j.ID, "s2")
	require.NoError(t, err)
	assert.Equal(t, 40, ins.ScoreDetails.TotalScore)
	assert.Len(t, ins.Breakdown, 6)

	require.NoError(t, c.DeleteJobRequest(ctx, j.ID))
	_, err = c.GetJobRequest(ctx, j.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestClientNotInvited(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	j, err := c.CreateJobRequest(ctx, CreateJobRequestInput{Title: "Library"})
	require.NoError(t, err)
	_, err = c.Respond(ctx, j.ID, "s2", "Declined")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_state", apiErr.Code)
}
