package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteermatch/internal/config"
	"volunteermatch/internal/db"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/engine"
	"volunteermatch/internal/metrics"
	"volunteermatch/internal/migrate"
	"volunteermatch/internal/notify"
	"volunteermatch/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *clock
}

type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	clk := &clock{cur: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	eng := engine.New(conn, config.Default()).WithClock(clk.Now)
	ctx := context.Background()
	_, err = eng.ImportCandidates(ctx, []domain.Candidate{
		{ID: "s-dana", Name: "Dana", Settlement: "Springfield", Interests: []string{"Medical Escort"},
			WorkBackground: domain.WorkBackground{Category: "Healthcare"}, VolunteerDays: []string{"Monday"},
			VolunteerFrequency: "once a week", VolunteerHours: "morning hours"},
		{ID: "s-eli", Name: "Eli", Settlement: "Springfield"},
		{ID: "s-fay", Name: "Fay", Settlement: "Riverside", Interests: []string{"Gardening"}},
	})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Clock: clk}
}

func escortInput() engine.JobRequestInput {
	return engine.JobRequestInput{
		Title:                  "Hospital escort",
		Description:            "Accompany patients to appointments",
		Location:               "Springfield",
		VolunteerField:         "Medical Escort",
		ProfessionalBackground: "Healthcare",
		Frequency:              "once a week",
		Timing:                 "morning hours",
		Days:                   []string{"Monday"},
		ActorID:                "admin-1",
	}
}

func (env testEnv) create(t *testing.T) domain.JobRequest {
	t.Helper()
	j, err := env.Engine.CreateJobRequest(env.Ctx, escortInput())
	require.NoError(t, err)
	return j
}

type countingMatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *countingMatcher) RunMatching(_ context.Context, id string) ([]domain.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)
	return nil, m.err
}

func (m *countingMatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureNotifier) ofType(typ string) []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Message
	for _, m := range c.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestCreateJobRequestRunsMatching(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)

	assert.Equal(t, domain.StatusActive, j.Status)
	require.Len(t, j.StatusHistory, 1)
	assert.Equal(t, domain.StatusHistoryEntry{
		Status:    domain.StatusActive,
		Timestamp: "2024-01-01T09:00:00Z",
		ChangedBy: "admin-1",
		Notes:     "Job request created",
	}, j.StatusHistory[0])
	assert.Empty(t, j.AssignedSeniors)

	require.Len(t, j.MatchResults, 2)
	assert.Equal(t, "s-dana", j.MatchResults[0].CandidateID)
	assert.Equal(t, 120, j.MatchResults[0].Score)
	assert.Equal(t, "s-eli", j.MatchResults[1].CandidateID)
	assert.Equal(t, 40, j.MatchResults[1].Score)
	assert.Equal(t, j.CreatedAt, j.UpdatedAt, "matching must not touch updated_at")
}

func TestCreateMatchingFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	m := &countingMatcher{err: errors.New("pool unavailable")}
	env.Engine.Matcher = m

	j, err := env.Engine.CreateJobRequest(env.Ctx, escortInput())
	require.Error(t, err)
	require.NotEmpty(t, j.ID, "persisted record is returned alongside the error")
	_, err = env.Engine.GetJobRequest(env.Ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.count())
}

func TestStatusHistoryIsAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	steps := []struct {
		status string
		notes  *string
		want   string
	}{
		{status: "In Progress", want: "Status changed from Active to In Progress"},
		{status: "Fulfilled", notes: ptr("Both visits done"), want: "Both visits done"},
		{status: "Archived", notes: ptr(""), want: "Status changed from Fulfilled to Archived"},
	}
	snapshot := append([]domain.StatusHistoryEntry(nil), j.StatusHistory...)
	for i, step := range steps {
		env.Clock.Advance(time.Minute)
		updated, err := env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{
			ID: j.ID, Status: ptr(step.status), StatusNotes: step.notes, ActorID: "admin-2",
		})
		require.NoError(t, err, "step %d", i)
		require.Len(t, updated.StatusHistory, i+2)
		assert.Equal(t, snapshot, updated.StatusHistory[:len(snapshot)], "earlier entries must not change")

		last := updated.StatusHistory[len(updated.StatusHistory)-1]
		assert.Equal(t, step.status, string(last.Status))
		assert.Equal(t, step.want, last.Notes)
		assert.Equal(t, "admin-2", last.ChangedBy)
		assert.Equal(t, env.Clock.Now().UTC().Format(time.RFC3339), updated.UpdatedAt)
		snapshot = append([]domain.StatusHistoryEntry(nil), updated.StatusHistory...)
	}

	same, err := env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: j.ID, Status: ptr("Archived"), ActorID: "admin-2"})
	require.NoError(t, err)
	assert.Len(t, same.StatusHistory, 4, "same-status update must not append")
	stored, err := env.Engine.GetJobRequest(env.Ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 4)
}

func TestUpdateInvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	_, err := env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: j.ID, Status: ptr("Closed")})
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestUpdateRematchTrigger(t *testing.T) {
	env := newTestEnv(t)
	m := &countingMatcher{}
	env.Engine.Matcher = m
	j := env.create(t)
	cases := []struct {
		name  string
		patch engine.JobRequestPatch
		calls int
	}{
		{"title", engine.JobRequestPatch{Title: ptr("New title")}, 0},
		{"frequency", engine.JobRequestPatch{Frequency: ptr("daily")}, 0},
		{"days", engine.JobRequestPatch{Days: ptr([]string{"Friday"})}, 0},
		{"status", engine.JobRequestPatch{Status: ptr("In Progress")}, 0},
		{"location", engine.JobRequestPatch{Location: ptr("Riverside")}, 1},
		{"volunteer field", engine.JobRequestPatch{VolunteerField: ptr("Gardening")}, 1},
		{"background", engine.JobRequestPatch{ProfessionalBackground: ptr("")}, 1},
		{"timing", engine.JobRequestPatch{Timing: ptr("evening")}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := m.count()
			tc.patch.ID = j.ID
			tc.patch.ActorID = "admin-1"
			_, err := env.Engine.UpdateJobRequest(env.Ctx, tc.patch)
			require.NoError(t, err)
			assert.Equal(t, tc.calls, m.count()-before)
		})
	}
}

func TestUpdateRematchRefreshesResults(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	updated, err := env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{
		ID: j.ID, Location: ptr("Riverside"), VolunteerField: ptr("Gardening"), ActorID: "admin-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, updated.MatchResults)
	assert.Equal(t, "s-fay", updated.MatchResults[0].CandidateID)
	assert.Equal(t, 65, updated.MatchResults[0].Score)
}

func TestInviteOverwritesByCandidate(t *testing.T) {
	env := newTestEnv(t)
	capture := &captureNotifier{}
	env.Engine.Notifier = capture
	j := env.create(t)

	_, err := env.Engine.Invite(env.Ctx, j.ID, "s-dana", "admin-1")
	require.NoError(t, err)
	_, err = env.Engine.RecordResponse(env.Ctx, j.ID, "s-dana", "Declined", "")
	require.NoError(t, err)
	env.Clock.Advance(time.Hour)
	j, err = env.Engine.Invite(env.Ctx, j.ID, "s-dana", "admin-1")
	require.NoError(t, err)

	require.Len(t, j.AssignedSeniors, 1)
	assert.Equal(t, domain.Assignment{
		CandidateID: "s-dana",
		Status:      domain.AssignmentInvited,
		AssignedAt:  "2024-01-01T10:00:00Z",
	}, j.AssignedSeniors[0])

	invites := capture.ofType(notify.TypeJobInvitation)
	require.Len(t, invites, 2)
	assert.Equal(t, []string{"s-dana"}, invites[0].UserIDs)
	assert.Equal(t, "/job-requests/"+j.ID, invites[0].Link)

	_, err = env.Engine.Invite(env.Ctx, j.ID, "nobody", "admin-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestInviteStoresNotification(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	_, err := env.Engine.Invite(env.Ctx, j.ID, "s-eli", "admin-1")
	require.NoError(t, err)

	ns, err := env.Engine.ListNotifications(env.Ctx, "s-eli", 10)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, notify.TypeJobInvitation, ns[0].Type)
	assert.Equal(t, "admin-1", ns[0].CreatedBy)
}

func TestRecordResponseRequiresInvite(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)

	_, err := env.Engine.RecordResponse(env.Ctx, j.ID, "s-eli", "Accepted", "")
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	var nie *engine.NotInvitedError
	require.ErrorAs(t, err, &nie)
	assert.Equal(t, "s-eli", nie.CandidateID)
	assert.Equal(t, engine.KindInvalidState, engine.Kind(err))

	_, err = env.Engine.RecordResponse(env.Ctx, j.ID, "s-eli", "Maybe", "")
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestAutoPromotionOnAcceptance(t *testing.T) {
	env := newTestEnv(t)
	capture := &captureNotifier{}
	env.Engine.Notifier = capture
	j := env.create(t)
	for _, id := range []string{"s-dana", "s-eli"} {
		_, err := env.Engine.Invite(env.Ctx, j.ID, id, "admin-1")
		require.NoError(t, err)
	}

	j, err := env.Engine.RecordResponse(env.Ctx, j.ID, "s-dana", "Accepted", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, j.Status, "must stay Active while an invitation is open")

	j, err = env.Engine.RecordResponse(env.Ctx, j.ID, "s-eli", "Declined", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, j.Status)
	require.Len(t, j.StatusHistory, 2)
	last := j.StatusHistory[1]
	assert.Equal(t, "Automatically updated as seniors have accepted the invitation", last.Notes)
	assert.Equal(t, "s-eli", last.ChangedBy)

	responses := capture.ofType(notify.TypeJobResponse)
	require.Len(t, responses, 2)
	assert.Equal(t, []string{"admin-1"}, responses[0].UserIDs)
	assert.Equal(t, "Dana accepted your job request: Hospital escort", responses[0].Text)

	changed := capture.ofType(notify.TypeJobStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, []string{"s-dana"}, changed[0].UserIDs, "status change reaches accepted seniors only")
}

func TestNoPromotionWhenAllDecline(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	for _, id := range []string{"s-dana", "s-eli"} {
		_, err := env.Engine.Invite(env.Ctx, j.ID, id, "admin-1")
		require.NoError(t, err)
		j, err = env.Engine.RecordResponse(env.Ctx, j.ID, id, "Declined", "")
		require.NoError(t, err)
	}
	assert.Equal(t, domain.StatusActive, j.Status)
	assert.Len(t, j.StatusHistory, 1)
}

func TestNoPromotionUnlessActive(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	_, err := env.Engine.Invite(env.Ctx, j.ID, "s-dana", "admin-1")
	require.NoError(t, err)
	_, err = env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: j.ID, Status: ptr("Archived"), ActorID: "admin-1"})
	require.NoError(t, err)

	j, err = env.Engine.RecordResponse(env.Ctx, j.ID, "s-dana", "Accepted", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, j.Status)
}

func TestNotificationFailureDoesNotFailMutation(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Metrics = metrics.New(prometheus.NewRegistry())
	env.Engine.Notifier = notify.Func(func(context.Context, notify.Message) error {
		return errors.New("smtp down")
	})
	j := env.create(t)

	j, err := env.Engine.Invite(env.Ctx, j.ID, "s-dana", "admin-1")
	require.NoError(t, err, "invite succeeds despite the notifier")
	_, err = env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: j.ID, Status: ptr("Fulfilled"), ActorID: "admin-1"})
	require.NoError(t, err, "status change succeeds despite the notifier")

	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.Notifications.WithLabelValues(notify.TypeJobInvitation, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Engine.Metrics.StatusTransitions.WithLabelValues("Active", "Fulfilled")))
}

func TestConcurrentInvitesKeepEveryAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Notifier = notify.Nop{}
	j := env.create(t)
	var extra []domain.Candidate
	for i := 0; i < 10; i++ {
		extra = append(extra, domain.Candidate{ID: fmt.Sprintf("s-%02d", i), Name: "Senior"})
	}
	_, err := env.Engine.ImportCandidates(env.Ctx, extra)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(extra)+1)
	for _, c := range extra {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.Engine.Invite(env.Ctx, j.ID, id, "admin-1")
			errs <- err
		}(c.ID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := env.Engine.RunMatching(env.Ctx, j.ID)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := env.Engine.GetJobRequest(env.Ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, stored.AssignedSeniors, len(extra))
	assert.Len(t, stored.MatchResults, 2)
}

func TestListFiltersAndOrder(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Matcher = &countingMatcher{}
	var ids []string
	for i, loc := range []string{"Springfield", "Riverside", "Springfield"} {
		in := escortInput()
		in.Title = fmt.Sprintf("job %d", i)
		in.Location = loc
		j, err := env.Engine.CreateJobRequest(env.Ctx, in)
		require.NoError(t, err)
		ids = append(ids, j.ID)
		env.Clock.Advance(time.Second)
	}
	_, err := env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: ids[2], Status: ptr("Fulfilled")})
	require.NoError(t, err)

	all, err := env.Engine.ListJobRequests(env.Ctx, repo.JobRequestFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	active, err := env.Engine.ListJobRequests(env.Ctx, repo.JobRequestFilters{Status: "Active", Location: "Springfield"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ids[0], active[0].ID)

	_, err = env.Engine.ListJobRequests(env.Ctx, repo.JobRequestFilters{Status: "Open"})
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestDeleteJobRequest(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	require.NoError(t, env.Engine.DeleteJobRequest(env.Ctx, j.ID, "admin-1"))

	_, err := env.Engine.GetJobRequest(env.Ctx, j.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, env.Engine.DeleteJobRequest(env.Ctx, j.ID, "admin-1"), repo.ErrNotFound)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityID: j.ID, Type: "job_request.deleted"})
	require.NoError(t, err)
	assert.Len(t, evts, 1)
}

func TestMissingJobRequestIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	checks := map[string]error{}
	_, checks["get"] = env.Engine.GetJobRequest(env.Ctx, "nope")
	_, checks["update"] = env.Engine.UpdateJobRequest(env.Ctx, engine.JobRequestPatch{ID: "nope", Title: ptr("x")})
	_, checks["invite"] = env.Engine.Invite(env.Ctx, "nope", "s-dana", "admin-1")
	_, checks["respond"] = env.Engine.RecordResponse(env.Ctx, "nope", "s-dana", "Accepted", "")
	_, checks["inspect"] = env.Engine.Inspect(env.Ctx, "nope", "s-dana")
	_, checks["match"] = env.Engine.RunMatching(env.Ctx, "nope")
	for op, err := range checks {
		assert.ErrorIs(t, err, repo.ErrNotFound, op)
	}
}

func TestInspectIsLive(t *testing.T) {
	env := newTestEnv(t)
	j := env.create(t)
	_, err := env.Engine.ImportCandidates(env.Ctx, []domain.Candidate{{ID: "s-eli", Name: "Eli", Settlement: "Riverside"}})
	require.NoError(t, err)

	ins, err := env.Engine.Inspect(env.Ctx, j.ID, "s-eli")
	require.NoError(t, err)
	assert.Equal(t, 0, ins.ScoreDetails.TotalScore)
	assert.Equal(t, 40, ins.JobRequest.MatchResults[1].Score, "cached results stay untouched")
	require.Len(t, ins.Breakdown, 6)
	assert.Equal(t, "location", ins.Breakdown[0].Name)
	assert.Equal(t, 40, ins.Breakdown[0].Max)

	_, err = env.Engine.Inspect(env.Ctx, j.ID, "ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	full, err := env.Engine.Inspect(env.Ctx, j.ID, "s-dana")
	require.NoError(t, err)
	sum := 0
	for _, c := range full.Breakdown {
		sum += c.Score
	}
	assert.Equal(t, 120, sum)
	assert.Equal(t, 120, full.ScoreDetails.TotalScore)
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":                         nil,
		engine.KindNotFound:        fmt.Errorf("wrap: %w", repo.ErrNotFound),
		engine.KindConflict:        repo.ErrConflict,
		engine.KindInvalidState:    &engine.NotInvitedError{},
		engine.KindUpstream:        &repo.StoreError{Op: "x", Err: errors.New("io")},
		engine.KindInvalidArgument: engine.ErrInvalidArgument,
		engine.KindTimeout:         context.DeadlineExceeded,
		engine.KindInternal:        errors.New("other"),
	}
	for want, err := range cases {
		assert.Equal(t, want, engine.Kind(err), "Kind(%v)", err)
	}
}
