// Package scoring ranks a single candidate against a job request.
//
// Score is pure: it performs no I/O and never fails. Missing profile
// fields contribute zero.
package scoring

import (
	"strings"
	"unicode/utf8"

	"volunteermatch/internal/domain"
)

// Component caps. Total is their plain sum (120).
const (
	MaxLocation     = 40
	MaxInterests    = 25
	MaxBackground   = 25
	MaxAvailability = 10
	MaxFrequency    = 10
	MaxTiming       = 10
	MaxTotal        = MaxLocation + MaxInterests + MaxBackground + MaxAvailability + MaxFrequency + MaxTiming

	partialInterestStep = 5
	partialInterestCap  = 15
	partialBackground   = 15
	partialAvailability = 5
	partialText         = 5
	minKeywordRunes     = 4
)

// Score computes the itemized breakdown for one (job request, candidate) pair.
func Score(job domain.JobRequest, c domain.Candidate) domain.ScoreDetail {
	d := domain.ScoreDetail{
		LocationScore:     Location(job.Location, c.Settlement),
		InterestsScore:    Interests(job.VolunteerField, c.Interests),
		BackgroundScore:   Background(job.ProfessionalBackground, c.WorkBackground.Category),
		AvailabilityScore: Availability(job.Days, c.EffectiveDays()),
		FrequencyScore:    Frequency(job.Frequency, c.EffectiveFrequency()),
		TimingScore:       Timing(job.Timing, c.EffectiveHours()),
	}
	d.TotalScore = d.LocationScore + d.InterestsScore + d.BackgroundScore +
		d.AvailabilityScore + d.FrequencyScore + d.TimingScore
	return d
}

// Location awards full credit only on exact, case-sensitive equality.
func Location(jobLocation, settlement string) int {
	if jobLocation != "" && jobLocation == settlement {
		return MaxLocation
	}
	return 0
}

// Interests awards 25 when the volunteer field is listed verbatim, otherwise
// 5 per interest containing a keyword of the field, capped at 15.
func Interests(field string, interests []string) int {
	if field == "" || len(interests) == 0 {
		return 0
	}
	for _, in := range interests {
		if in == field {
			return MaxInterests
		}
	}
	keywords := Keywords(field)
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, in := range interests {
		lower := strings.ToLower(in)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
				break
			}
		}
	}
	score := matches * partialInterestStep
	if score > partialInterestCap {
		score = partialInterestCap
	}
	return score
}

// Keywords splits a volunteer field into lowercase tokens longer than three
// characters.
func Keywords(field string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(field)) {
		if utf8.RuneCountInString(tok) >= minKeywordRunes {
			out = append(out, tok)
		}
	}
	return out
}

// Background gives full credit on equality and partial credit when one
// value contains the other, ignoring case.
func Background(required, category string) int {
	if required == "" || category == "" {
		return 0
	}
	if required == category {
		return MaxBackground
	}
	if containsFold(required, category) {
		return partialBackground
	}
	return 0
}

// Availability compares the job's days with the candidate's effective days.
func Availability(jobDays, candidateDays []string) int {
	if len(jobDays) == 0 || len(candidateDays) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(candidateDays))
	for _, d := range candidateDays {
		have[d] = struct{}{}
	}
	want := make(map[string]struct{}, len(jobDays))
	covered := 0
	for _, d := range jobDays {
		if _, dup := want[d]; dup {
			continue
		}
		want[d] = struct{}{}
		if _, ok := have[d]; ok {
			covered++
		}
	}
	switch {
	case covered == len(want):
		return MaxAvailability
	case covered > 0:
		return partialAvailability
	}
	return 0
}

// Frequency and Timing share the equality/substring policy.
func Frequency(job, candidate string) int { return textMatch(job, candidate, MaxFrequency) }

func Timing(job, candidate string) int { return textMatch(job, candidate, MaxTiming) }

func textMatch(job, candidate string, max int) int {
	if job == "" || candidate == "" {
		return 0
	}
	if job == candidate {
		return max
	}
	if containsFold(job, candidate) {
		return partialText
	}
	return 0
}

// containsFold reports whether either string contains the other, ignoring case.
func containsFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
