package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"volunteermatch/internal/domain"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/scoring"
)

// Inspection is a live scoring of one candidate against one job request.
type Inspection struct {
	JobRequest   domain.JobRequest  `json:"job_request"`
	Candidate    domain.Candidate   `json:"candidate"`
	ScoreDetails domain.ScoreDetail `json:"score_details"`
	Breakdown    []Component        `json:"breakdown"`
}

// Component explains one line of the score.
type Component struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Max    int    `json:"max"`
	Reason string `json:"reason"`
}

// Inspect loads both records fresh and recomputes the score. Cached match
// results are never consulted.
func (e Engine) Inspect(ctx context.Context, jobRequestID, candidateID string) (Inspection, error) {
	fields := []zap.Field{zap.String(logger.FieldJobRequestID, jobRequestID), zap.String(logger.FieldCandidateID, candidateID)}
	j, err := e.Repo.GetJobRequest(ctx, jobRequestID)
	if err != nil {
		return Inspection{}, e.fail("inspect match", err, fields...)
	}
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return Inspection{}, e.fail("inspect match", err, fields...)
	}
	d := scoring.Score(j, c)
	return Inspection{
		JobRequest:   j,
		Candidate:    c,
		ScoreDetails: d,
		Breakdown:    Explain(j, c, d),
	}, nil
}

// Explain describes each component of d in plain words.
func Explain(j domain.JobRequest, c domain.Candidate, d domain.ScoreDetail) []Component {
	return []Component{
		{Name: "location", Score: d.LocationScore, Max: scoring.MaxLocation, Reason: locationReason(j.Location, c.Settlement, d.LocationScore)},
		{Name: "interests", Score: d.InterestsScore, Max: scoring.MaxInterests, Reason: interestsReason(j.VolunteerField, c.Interests, d.InterestsScore)},
		{Name: "background", Score: d.BackgroundScore, Max: scoring.MaxBackground, Reason: textReason("professional background", j.ProfessionalBackground, c.WorkBackground.Category, d.BackgroundScore, scoring.MaxBackground)},
		{Name: "availability", Score: d.AvailabilityScore, Max: scoring.MaxAvailability, Reason: daysReason(j.Days, c.EffectiveDays(), d.AvailabilityScore)},
		{Name: "frequency", Score: d.FrequencyScore, Max: scoring.MaxFrequency, Reason: textReason("frequency", j.Frequency, c.EffectiveFrequency(), d.FrequencyScore, scoring.MaxFrequency)},
		{Name: "timing", Score: d.TimingScore, Max: scoring.MaxTiming, Reason: textReason("hours", j.Timing, c.EffectiveHours(), d.TimingScore, scoring.MaxTiming)},
	}
}

func locationReason(job, settlement string, score int) string {
	switch {
	case job == "" || settlement == "":
		return "location not specified"
	case score > 0:
		return fmt.Sprintf("lives in %s", settlement)
	}
	return fmt.Sprintf("lives in %s, job is in %s", settlement, job)
}

func interestsReason(field string, interests []string, score int) string {
	switch {
	case field == "" || len(interests) == 0:
		return "no interests to compare"
	case score == scoring.MaxInterests:
		return fmt.Sprintf("lists %q as an interest", field)
	case score > 0:
		return fmt.Sprintf("interests share keywords with %q (%s)", field, strings.Join(scoring.Keywords(field), ", "))
	}
	return fmt.Sprintf("no interest relates to %q", field)
}

func textReason(label, job, candidate string, score, max int) string {
	switch {
	case job == "" || candidate == "":
		return label + " not specified"
	case score == max:
		return fmt.Sprintf("%s matches exactly", label)
	case score > 0:
		return fmt.Sprintf("%s %q partially matches %q", label, candidate, job)
	}
	return fmt.Sprintf("%s %q does not match %q", label, candidate, job)
}

func daysReason(jobDays, candidateDays []string, score int) string {
	switch {
	case len(jobDays) == 0 || len(candidateDays) == 0:
		return "days not specified"
	case score == scoring.MaxAvailability:
		return "available on every requested day"
	case score > 0:
		return "available on some requested days"
	}
	return "not available on any requested day"
}
