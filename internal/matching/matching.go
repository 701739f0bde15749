// Package matching ranks the retiree pool against a job request and stores
// the result set on the job request.
package matching

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"volunteermatch/internal/domain"
	"volunteermatch/internal/events"
	"volunteermatch/internal/lock"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/metrics"
	"volunteermatch/internal/repo"
	"volunteermatch/internal/scoring"
)

const (
	DefaultThreshold = 10
	DefaultWorkers   = 4
	DefaultTimeout   = 30 * time.Second

	systemActor = "system"
)

// Matcher recomputes and stores match results for one job request.
type Matcher interface {
	RunMatching(ctx context.Context, jobRequestID string) ([]domain.MatchResult, error)
}

type Orchestrator struct {
	Repo    repo.Repo
	Events  events.Writer
	Locks   *lock.Keyed
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time

	Threshold int
	Workers   int
	Timeout   time.Duration
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers
}

func (o *Orchestrator) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// RunMatching scores every retiree against the job request, keeps those at
// or above the threshold, and replaces the stored match results wholesale.
func (o *Orchestrator) RunMatching(ctx context.Context, jobRequestID string) (results []domain.MatchResult, err error) {
	started := time.Now()
	log := logger.OrNop(o.Log).With(zap.String(logger.FieldJobRequestID, jobRequestID))
	scored := 0
	defer func() {
		o.Metrics.ObserveMatching(started, scored, len(results), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	job, err := o.Repo.GetJobRequest(ctx, jobRequestID)
	if err != nil {
		return nil, err
	}
	pool, err := o.Repo.ListCandidates(ctx, domain.RoleRetiree)
	if err != nil {
		return nil, err
	}
	scored = len(pool)
	results, err = o.Rank(ctx, job, pool)
	if err != nil {
		return nil, err
	}
	results, err = o.store(ctx, job, pool, results)
	if err != nil {
		log.Warn("store match results failed", zap.Error(err))
		return nil, err
	}
	log.Info("matching completed", zap.Int("candidates", len(pool)), zap.Int("matches", len(results)))
	return results, nil
}

// Rank scores pool concurrently and returns the kept candidates sorted by
// descending score. Ties keep pool order.
func (o *Orchestrator) Rank(ctx context.Context, job domain.JobRequest, pool []domain.Candidate) ([]domain.MatchResult, error) {
	details := make([]domain.ScoreDetail, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())
	for i := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			details[i] = scoring.Score(job, pool[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	return Select(pool, details, o.threshold(), o.now().UTC().Format(time.RFC3339)), nil
}

func (o *Orchestrator) threshold() int {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return DefaultThreshold
}

// Select filters scored candidates by threshold and orders them by
// descending total. details[i] must belong to pool[i].
func Select(pool []domain.Candidate, details []domain.ScoreDetail, threshold int, matchedAt string) []domain.MatchResult {
	results := make([]domain.MatchResult, 0, len(pool))
	for i, c := range pool {
		d := details[i]
		if d.TotalScore < threshold {
			continue
		}
		results = append(results, domain.MatchResult{
			CandidateID:         c.ID,
			CandidateName:       c.Name,
			CandidateLocation:   c.Settlement,
			CandidateBackground: c.WorkBackground.Category,
			CandidateInterests:  nonNil(c.Interests),
			CandidateDays:       nonNil(c.EffectiveDays()),
			Score:               d.TotalScore,
			ScoreDetails:        d,
			MatchedAt:           matchedAt,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// store writes results under the job request's lock. If the match inputs
// changed since results were computed, the pool is re-ranked against the
// current record first so a slow run never overwrites a newer one with
// stale scores.
func (o *Orchestrator) store(ctx context.Context, scoredJob domain.JobRequest, pool []domain.Candidate, results []domain.MatchResult) ([]domain.MatchResult, error) {
	if o.Locks != nil {
		unlock := o.Locks.Lock(scoredJob.ID)
		defer unlock()
	}
	tx, err := o.Repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := o.Repo.GetJobRequestTx(ctx, tx, scoredJob.ID)
	if err != nil {
		return nil, err
	}
	if inputsChanged(scoredJob, cur) {
		if results, err = o.Rank(ctx, cur, pool); err != nil {
			return nil, err
		}
	}
	cur.MatchResults = results
	if _, err := o.Repo.UpdateJobRequest(ctx, tx, cur); err != nil {
		return nil, err
	}
	top := 0
	if len(results) > 0 {
		top = results[0].Score
	}
	if err := o.Events.Append(ctx, tx, events.JobRequestMatched, events.KindJobRequest, cur.ID, systemActor, events.EventPayload{
		"candidates": len(pool),
		"matches":    len(results),
		"top_score":  top,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func inputsChanged(a, b domain.JobRequest) bool {
	return a.Location != b.Location ||
		a.VolunteerField != b.VolunteerField ||
		a.ProfessionalBackground != b.ProfessionalBackground ||
		a.Frequency != b.Frequency ||
		a.Timing != b.Timing ||
		!slices.Equal(a.Days, b.Days)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
