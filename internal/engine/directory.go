package engine

import (
	"context"
	"strings"

	"volunteermatch/internal/domain"
	"volunteermatch/internal/repo"
)

// Read-only views over candidates, notifications and the audit log, plus
// the profile import used to seed the store.

func (e Engine) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidate(ctx, id)
	if err != nil {
		return c, e.fail("get candidate", err)
	}
	return c, nil
}

func (e Engine) ListCandidates(ctx context.Context, role string) ([]domain.Candidate, error) {
	res, err := e.Repo.ListCandidates(ctx, role)
	if err != nil {
		return nil, e.fail("list candidates", err)
	}
	return res, nil
}

// ImportCandidates upserts profiles in order. Role defaults to retiree.
func (e Engine) ImportCandidates(ctx context.Context, cs []domain.Candidate) (int, error) {
	for i, c := range cs {
		if strings.TrimSpace(c.ID) == "" {
			return i, invalidArgument("candidate %d has no id", i)
		}
		if c.Role == "" {
			c.Role = domain.RoleRetiree
		}
		if c.CreatedAt == "" {
			c.CreatedAt = e.timestamp()
		}
		if err := e.Repo.UpsertCandidate(ctx, c); err != nil {
			return i, e.fail("import candidates", err)
		}
	}
	return len(cs), nil
}

func (e Engine) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	res, err := e.Repo.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, e.fail("list notifications", err)
	}
	return res, nil
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	res, err := e.Repo.LatestEvents(ctx, f)
	if err != nil {
		return nil, e.fail("list events", err)
	}
	return res, nil
}
