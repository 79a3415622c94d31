package warranty

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

// Candidate is what an inbound claim can tell us about the originating job.
type Candidate struct {
	JobID     string
	Reference string
	Phone     string
}

// Match links a claim to a job with a coarse confidence tier.
type Match struct {
	JobID      *string
	Confidence model.MatchConfidence
}

// Matcher resolves a claim to at most one job via an ordered rule list,
// greedy first-hit-wins. New strategies are added by appending a rule.
type Matcher struct {
	jobs  repository.JobsRepository
	rules []rule
}

type rule func(ctx context.Context, m *Matcher, c Candidate, now time.Time) (*Match, error)

func NewMatcher(jobs repository.JobsRepository) *Matcher {
	m := &Matcher{jobs: jobs}
	m.rules = []rule{matchByJobID, matchByReference, matchByPhoneRecency}
	return m
}

// MatchToJob applies the rules in priority order: exact job id, exact
// reference, then most recent job for the phone within 90 days (medium if
// ≤30 days old, low if 31-90). No candidate ranking beyond first hit.
func (m *Matcher) MatchToJob(ctx context.Context, c Candidate) (Match, error) {
	now := time.Now()
	for _, r := range m.rules {
		hit, err := r(ctx, m, c, now)
		if err != nil {
			return Match{}, err
		}
		if hit != nil {
			return *hit, nil
		}
	}
	return Match{JobID: nil, Confidence: model.ConfidenceNone}, nil
}

func matchByJobID(ctx context.Context, m *Matcher, c Candidate, _ time.Time) (*Match, error) {
	if c.JobID == "" {
		return nil, nil
	}
	job, err := m.jobs.GetByID(ctx, c.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return &Match{JobID: &job.ID, Confidence: model.ConfidenceHigh}, nil
}

func matchByReference(ctx context.Context, m *Matcher, c Candidate, _ time.Time) (*Match, error) {
	if c.Reference == "" {
		return nil, nil
	}
	job, err := m.jobs.GetByReference(ctx, c.Reference)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return &Match{JobID: &job.ID, Confidence: model.ConfidenceHigh}, nil
}

func matchByPhoneRecency(ctx context.Context, m *Matcher, c Candidate, now time.Time) (*Match, error) {
	if c.Phone == "" {
		return nil, nil
	}
	job, err := m.jobs.LatestByPhone(ctx, c.Phone, now.AddDate(0, 0, -90))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	conf := model.ConfidenceLow
	if now.Sub(job.CreatedAt) <= 30*24*time.Hour {
		conf = model.ConfidenceMedium
	}
	return &Match{JobID: &job.ID, Confidence: conf}, nil
}

// IdempotencyKey derives the dedup key for a claim: the submission time is
// rounded down to its 5-minute bucket and hashed together with the phone and
// the first 100 characters of the description. Two near-identical
// submissions inside one bucket collapse to the same key. Submissions that
// straddle a bucket boundary do not; that imprecision is accepted and the
// bucketing rule must not change.
func IdempotencyKey(phone, description string, ts time.Time) string {
	desc := description
	if len(desc) > 100 {
		// truncate on a rune boundary, never mid-character
		r := []rune(desc)
		if len(r) > 100 {
			r = r[:100]
		}
		desc = string(r)
	}
	bucket := ts.UTC().Truncate(5 * time.Minute)
	sum := sha256.Sum256([]byte(phone + "|" + desc + "|" + bucket.Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}
