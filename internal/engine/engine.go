package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volunteermatch/internal/config"
	"volunteermatch/internal/domain"
	"volunteermatch/internal/events"
	"volunteermatch/internal/lock"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/matching"
	"volunteermatch/internal/metrics"
	"volunteermatch/internal/notify"
	"volunteermatch/internal/repo"
)

const (
	notesCreated      = "Job request created"
	notesAutoProgress = "Automatically updated as seniors have accepted the invitation"
)

// Engine is the job request lifecycle service.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Matcher  matching.Matcher
	Notifier notify.Notifier
	Locks    *lock.Keyed
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// New wires an engine over db with a matching orchestrator sharing its
// per-record locks. Notifications default to the notifications table.
func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	locks := &lock.Keyed{}
	e := Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{},
		Config:   cfg,
		Notifier: notify.Store{Repo: r},
		Locks:    locks,
		Log:      zap.NewNop(),
		Now:      time.Now,
	}
	e.Matcher = &matching.Orchestrator{
		Repo:      r,
		Events:    e.Events,
		Locks:     locks,
		Threshold: cfg.Matching.Threshold,
		Workers:   cfg.Matching.Workers,
		Timeout:   cfg.MatchingTimeout(),
	}
	return e
}

// WithClock makes now the single time source for the engine, its audit
// writer, the default orchestrator and the store notifier.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Events.Now = now
	if o, ok := e.Matcher.(*matching.Orchestrator); ok {
		o.Now = now
		o.Events.Now = now
	}
	if s, ok := e.Notifier.(notify.Store); ok {
		s.Now = now
		e.Notifier = s
	}
	return e
}

// Instrument attaches log and m to the engine and its default orchestrator.
func (e Engine) Instrument(log *zap.Logger, m *metrics.Metrics) Engine {
	e.Log = log
	e.Metrics = m
	if o, ok := e.Matcher.(*matching.Orchestrator); ok {
		o.Log = log
		o.Metrics = m
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	return logger.OrNop(e.Log)
}

// fail logs err with its kind and passes it through unchanged.
func (e Engine) fail(op string, err error, fields ...zap.Field) error {
	kind := Kind(err)
	e.Metrics.StoreError(kind)
	fields = append(fields, zap.String(logger.FieldKind, kind), zap.Error(err))
	if kind == KindUpstream || kind == KindInternal {
		e.log().Error(op+" failed", fields...)
	} else {
		e.log().Debug(op+" rejected", fields...)
	}
	return err
}

// JobRequestInput holds the fields of a new job request.
type JobRequestInput struct {
	Title                  string
	Description            string
	Location               string
	VolunteerField         string
	ProfessionalBackground string
	Frequency              string
	Timing                 string
	Days                   []string
	ActorID                string
}

// CreateJobRequest stores an Active job request with its first history
// entry, then runs matching once. When matching fails the stored record
// is returned together with the error.
func (e Engine) CreateJobRequest(ctx context.Context, in JobRequestInput) (domain.JobRequest, error) {
	now := e.timestamp()
	j := domain.JobRequest{
		ID:                     uuid.NewString(),
		Title:                  in.Title,
		Description:            in.Description,
		Location:               in.Location,
		VolunteerField:         in.VolunteerField,
		ProfessionalBackground: in.ProfessionalBackground,
		Frequency:              in.Frequency,
		Timing:                 in.Timing,
		Days:                   nonNil(in.Days),
		Status:                 domain.StatusActive,
		MatchResults:           []domain.MatchResult{},
		AssignedSeniors:        []domain.Assignment{},
		CreatedBy:              in.ActorID,
		CreatedAt:              now,
		UpdatedAt:              now,
		Version:                1,
	}
	first := domain.StatusHistoryEntry{Status: domain.StatusActive, Timestamp: now, ChangedBy: in.ActorID, Notes: notesCreated}
	log := e.log().With(zap.String(logger.FieldJobRequestID, j.ID), zap.String(logger.FieldActorID, in.ActorID))

	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.JobRequest{}, e.fail("create job request", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertJobRequest(ctx, tx, j); err != nil {
		return domain.JobRequest{}, e.fail("create job request", err)
	}
	if err := e.Repo.AppendStatusHistory(ctx, tx, j.ID, first); err != nil {
		return domain.JobRequest{}, e.fail("create job request", err)
	}
	if err := e.Events.Append(ctx, tx, events.JobRequestCreated, events.KindJobRequest, j.ID, in.ActorID, events.EventPayload{
		"title":           j.Title,
		"location":        j.Location,
		"volunteer_field": j.VolunteerField,
	}); err != nil {
		return domain.JobRequest{}, e.fail("create job request", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, e.fail("create job request", err)
	}
	j.StatusHistory = []domain.StatusHistoryEntry{first}
	log.Info("job request created")

	if err := e.rematch(ctx, j.ID); err != nil {
		return j, err
	}
	return e.GetJobRequest(ctx, j.ID)
}

func (e Engine) GetJobRequest(ctx context.Context, id string) (domain.JobRequest, error) {
	j, err := e.Repo.GetJobRequest(ctx, id)
	if err != nil {
		return j, e.fail("get job request", err, zap.String(logger.FieldJobRequestID, id))
	}
	return j, nil
}

func (e Engine) ListJobRequests(ctx context.Context, f repo.JobRequestFilters) ([]domain.JobRequest, error) {
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return nil, invalidArgument("%v", err)
		}
	}
	res, err := e.Repo.ListJobRequests(ctx, f)
	if err != nil {
		return nil, e.fail("list job requests", err)
	}
	return res, nil
}

// JobRequestPatch lists the fields to change; nil pointers are left alone.
// StatusNotes only annotates the history entry of a status change.
type JobRequestPatch struct {
	ID                     string
	Title                  *string
	Description            *string
	Location               *string
	VolunteerField         *string
	ProfessionalBackground *string
	Frequency              *string
	Timing                 *string
	Days                   *[]string
	Status                 *string
	StatusNotes            *string
	ActorID                string
}

// TouchesMatchInputs reports whether applying p requires re-running matching.
func (p JobRequestPatch) TouchesMatchInputs() bool {
	return p.Location != nil || p.VolunteerField != nil || p.ProfessionalBackground != nil || p.Timing != nil
}

type statusChange struct {
	from, to domain.Status
}

func (e Engine) UpdateJobRequest(ctx context.Context, p JobRequestPatch) (domain.JobRequest, error) {
	var target domain.Status
	if p.Status != nil {
		st, err := domain.ParseStatus(*p.Status)
		if err != nil {
			return domain.JobRequest{}, invalidArgument("%v", err)
		}
		target = st
	}
	var change *statusChange
	j, err := e.mutate(ctx, p.ID, func(tx *sql.Tx, j *domain.JobRequest) error {
		applyString(&j.Title, p.Title)
		applyString(&j.Description, p.Description)
		applyString(&j.Location, p.Location)
		applyString(&j.VolunteerField, p.VolunteerField)
		applyString(&j.ProfessionalBackground, p.ProfessionalBackground)
		applyString(&j.Frequency, p.Frequency)
		applyString(&j.Timing, p.Timing)
		if p.Days != nil {
			j.Days = nonNil(*p.Days)
		}
		if target != "" && target != j.Status {
			notes := fmt.Sprintf("Status changed from %s to %s", j.Status, target)
			if p.StatusNotes != nil && *p.StatusNotes != "" {
				notes = *p.StatusNotes
			}
			change = &statusChange{from: j.Status, to: target}
			if err := e.appendStatus(ctx, tx, j, target, p.ActorID, notes); err != nil {
				return err
			}
		}
		return e.Events.Append(ctx, tx, events.JobRequestUpdated, events.KindJobRequest, j.ID, p.ActorID, events.EventPayload{
			"rematch": p.TouchesMatchInputs(),
		})
	})
	if err != nil {
		return j, e.fail("update job request", err, zap.String(logger.FieldJobRequestID, p.ID))
	}
	e.log().Info("job request updated", zap.String(logger.FieldJobRequestID, j.ID), zap.String(logger.FieldStatus, string(j.Status)))
	if change != nil {
		e.afterStatusChange(ctx, j, *change, p.ActorID)
	}
	if p.TouchesMatchInputs() {
		if err := e.rematch(ctx, j.ID); err != nil {
			return j, err
		}
		return e.GetJobRequest(ctx, j.ID)
	}
	return j, nil
}

// DeleteJobRequest removes the record and its history.
func (e Engine) DeleteJobRequest(ctx context.Context, id, actorID string) error {
	unlock := e.lock(id)
	defer unlock()
	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return e.fail("delete job request", err)
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteJobRequest(ctx, tx, id); err != nil {
		return e.fail("delete job request", err, zap.String(logger.FieldJobRequestID, id))
	}
	if err := e.Events.Append(ctx, tx, events.JobRequestDeleted, events.KindJobRequest, id, actorID, nil); err != nil {
		return e.fail("delete job request", err)
	}
	if err := tx.Commit(); err != nil {
		return e.fail("delete job request", err)
	}
	e.log().Info("job request deleted", zap.String(logger.FieldJobRequestID, id))
	return nil
}

// RunMatching recomputes match results now.
func (e Engine) RunMatching(ctx context.Context, id string) ([]domain.MatchResult, error) {
	if e.Matcher == nil {
		return nil, fmt.Errorf("matcher not configured")
	}
	res, err := e.Matcher.RunMatching(ctx, id)
	if err != nil {
		return nil, e.fail("run matching", err, zap.String(logger.FieldJobRequestID, id))
	}
	return res, nil
}

func (e Engine) rematch(ctx context.Context, id string) error {
	if e.Matcher == nil {
		return nil
	}
	if _, err := e.Matcher.RunMatching(ctx, id); err != nil {
		return e.fail("run matching", fmt.Errorf("run matching: %w", err), zap.String(logger.FieldJobRequestID, id))
	}
	return nil
}

// Invite records an invitation for candidateID, replacing any earlier
// entry for the same candidate, and notifies the candidate.
func (e Engine) Invite(ctx context.Context, jobRequestID, candidateID, actorID string) (domain.JobRequest, error) {
	fields := []zap.Field{zap.String(logger.FieldJobRequestID, jobRequestID), zap.String(logger.FieldCandidateID, candidateID)}
	if _, err := e.Repo.GetCandidate(ctx, candidateID); err != nil {
		return domain.JobRequest{}, e.fail("invite candidate", err, fields...)
	}
	j, err := e.mutate(ctx, jobRequestID, func(tx *sql.Tx, j *domain.JobRequest) error {
		a := domain.Assignment{CandidateID: candidateID, Status: domain.AssignmentInvited, AssignedAt: e.timestamp()}
		replaced := false
		for i := range j.AssignedSeniors {
			if j.AssignedSeniors[i].CandidateID == candidateID {
				j.AssignedSeniors[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			j.AssignedSeniors = append(j.AssignedSeniors, a)
		}
		return e.Events.Append(ctx, tx, events.CandidateInvited, events.KindJobRequest, j.ID, actorID, events.EventPayload{
			"candidate_id": candidateID,
			"reinvite":     replaced,
		})
	})
	if err != nil {
		return j, e.fail("invite candidate", err, fields...)
	}
	e.log().Info("candidate invited", fields...)
	e.notify(ctx, notify.Message{
		UserIDs:   []string{candidateID},
		Text:      fmt.Sprintf("You have been invited to volunteer: %s", j.Title),
		Type:      notify.TypeJobInvitation,
		Link:      jobLink(j.ID),
		CreatedBy: actorID,
	})
	return j, nil
}

// RecordResponse stores a candidate's answer and notifies the job's
// creator. Once every invitation is answered and at least one accepted, an
// Active job request moves to In Progress.
func (e Engine) RecordResponse(ctx context.Context, jobRequestID, candidateID, response, actorID string) (domain.JobRequest, error) {
	fields := []zap.Field{zap.String(logger.FieldJobRequestID, jobRequestID), zap.String(logger.FieldCandidateID, candidateID)}
	answer, err := domain.ParseResponse(response)
	if err != nil {
		return domain.JobRequest{}, invalidArgument("%v", err)
	}
	if actorID == "" {
		actorID = candidateID
	}
	var change *statusChange
	j, err := e.mutate(ctx, jobRequestID, func(tx *sql.Tx, j *domain.JobRequest) error {
		idx := -1
		for i := range j.AssignedSeniors {
			if j.AssignedSeniors[i].CandidateID == candidateID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &NotInvitedError{JobRequestID: j.ID, CandidateID: candidateID}
		}
		j.AssignedSeniors[idx].Status = answer
		j.AssignedSeniors[idx].ResponseAt = e.timestamp()
		if err := e.Events.Append(ctx, tx, events.CandidateResponded, events.KindJobRequest, j.ID, actorID, events.EventPayload{
			"candidate_id": candidateID,
			"response":     string(answer),
		}); err != nil {
			return err
		}
		if j.Status == domain.StatusActive && readyToProgress(j.AssignedSeniors) {
			change = &statusChange{from: j.Status, to: domain.StatusInProgress}
			return e.appendStatus(ctx, tx, j, domain.StatusInProgress, actorID, notesAutoProgress)
		}
		return nil
	})
	if err != nil {
		return j, e.fail("record response", err, fields...)
	}
	e.log().Info("invitation answered", append(fields, zap.String("response", string(answer)))...)

	name := candidateID
	if c, err := e.Repo.GetCandidate(ctx, candidateID); err == nil && c.Name != "" {
		name = c.Name
	}
	verb := "accepted"
	if answer == domain.AssignmentDeclined {
		verb = "declined"
	}
	e.notify(ctx, notify.Message{
		UserIDs:   []string{j.CreatedBy},
		Text:      fmt.Sprintf("%s %s your job request: %s", name, verb, j.Title),
		Type:      notify.TypeJobResponse,
		Link:      jobLink(j.ID),
		CreatedBy: actorID,
	})
	if change != nil {
		e.afterStatusChange(ctx, j, *change, actorID)
	}
	return j, nil
}

func readyToProgress(as []domain.Assignment) bool {
	if len(as) == 0 {
		return false
	}
	accepted := false
	for _, a := range as {
		if !a.Status.Terminal() {
			return false
		}
		if a.Status == domain.AssignmentAccepted {
			accepted = true
		}
	}
	return accepted
}

// mutate applies fn to the current record under the record's lock and
// writes it back with a version check. fn may append history and events
// through tx.
func (e Engine) mutate(ctx context.Context, id string, fn func(tx *sql.Tx, j *domain.JobRequest) error) (domain.JobRequest, error) {
	unlock := e.lock(id)
	defer unlock()

	tx, err := e.Repo.BeginTx(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobRequestTx(ctx, tx, id)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if j.AssignedSeniors == nil {
		j.AssignedSeniors = []domain.Assignment{}
	}
	if err := fn(tx, &j); err != nil {
		return domain.JobRequest{}, err
	}
	j.UpdatedAt = e.timestamp()
	v, err := e.Repo.UpdateJobRequest(ctx, tx, j)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	j.Version = v
	return j, nil
}

func (e Engine) lock(id string) func() {
	if e.Locks == nil {
		return func() {}
	}
	return e.Locks.Lock(id)
}

// appendStatus sets j.Status and records the change in history and the
// audit log. Existing history entries are never rewritten.
func (e Engine) appendStatus(ctx context.Context, tx *sql.Tx, j *domain.JobRequest, to domain.Status, actorID, notes string) error {
	entry := domain.StatusHistoryEntry{Status: to, Timestamp: e.timestamp(), ChangedBy: actorID, Notes: notes}
	if err := e.Repo.AppendStatusHistory(ctx, tx, j.ID, entry); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.JobRequestStatusChanged, events.KindJobRequest, j.ID, actorID, events.EventPayload{
		"from":  string(j.Status),
		"to":    string(to),
		"notes": notes,
	}); err != nil {
		return err
	}
	j.Status = to
	j.StatusHistory = append(j.StatusHistory, entry)
	return nil
}

// afterStatusChange tells every senior still holding or having accepted an
// invitation about the new status.
func (e Engine) afterStatusChange(ctx context.Context, j domain.JobRequest, c statusChange, actorID string) {
	e.Metrics.StatusTransition(string(c.from), string(c.to))
	e.log().Info("job request status changed",
		zap.String(logger.FieldJobRequestID, j.ID),
		zap.String("from", string(c.from)),
		zap.String(logger.FieldStatus, string(c.to)))
	var recipients []string
	for _, a := range j.AssignedSeniors {
		if a.Status == domain.AssignmentInvited || a.Status == domain.AssignmentAccepted {
			recipients = append(recipients, a.CandidateID)
		}
	}
	if len(recipients) == 0 {
		return
	}
	e.notify(ctx, notify.Message{
		UserIDs:   recipients,
		Text:      fmt.Sprintf("Job request %q is now %s", j.Title, c.to),
		Type:      notify.TypeJobStatusChanged,
		Link:      jobLink(j.ID),
		CreatedBy: actorID,
	})
}

// notify delivers msg best-effort. Failures are logged and counted only.
func (e Engine) notify(ctx context.Context, msg notify.Message) {
	if e.Notifier == nil {
		return
	}
	err := e.Notifier.Notify(ctx, msg)
	e.Metrics.Notification(msg.Type, err)
	if err != nil {
		e.log().Warn("notification failed",
			zap.String("type", msg.Type),
			zap.Strings("user_ids", msg.UserIDs),
			zap.Error(err))
	}
}

func jobLink(id string) string {
	return "/job-requests/" + id
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
