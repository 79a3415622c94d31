package warranty

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

// fakeJobs overrides only the lookups the matcher uses; everything else
// panics via the embedded nil interface.
type fakeJobs struct {
	repository.JobsRepository

	byID    map[string]*model.Job
	byRef   map[string]*model.Job
	byPhone map[string]*model.Job
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	return f.byID[id], nil
}

func (f *fakeJobs) GetByReference(_ context.Context, ref string) (*model.Job, error) {
	return f.byRef[ref], nil
}

func (f *fakeJobs) LatestByPhone(_ context.Context, phone string, since time.Time) (*model.Job, error) {
	j := f.byPhone[phone]
	if j == nil || j.CreatedAt.Before(since) {
		return nil, nil
	}
	return j, nil
}

func TestMatcher_RulePriority(t *testing.T) {
	recent := &model.Job{ID: "01JOBRECENT", Reference: "NFD-20260101-001", CustomerPhone: "+447700900123", CreatedAt: time.Now().AddDate(0, 0, -5)}
	other := &model.Job{ID: "01JOBOTHER", Reference: "NFD-20260102-002", CustomerPhone: "+447700900999", CreatedAt: time.Now().AddDate(0, 0, -2)}

	jobs := &fakeJobs{
		byID:    map[string]*model.Job{recent.ID: recent},
		byRef:   map[string]*model.Job{other.Reference: other},
		byPhone: map[string]*model.Job{recent.CustomerPhone: recent, other.CustomerPhone: other},
	}
	m := NewMatcher(jobs)

	t.Run("job id wins over reference and phone", func(t *testing.T) {
		got, err := m.MatchToJob(context.Background(), Candidate{
			JobID:     recent.ID,
			Reference: other.Reference,
			Phone:     other.CustomerPhone,
		})
		require.NoError(t, err)
		require.NotNil(t, got.JobID)
		assert.Equal(t, recent.ID, *got.JobID)
		assert.Equal(t, model.ConfidenceHigh, got.Confidence)
	})

	t.Run("reference wins over phone", func(t *testing.T) {
		got, err := m.MatchToJob(context.Background(), Candidate{
			Reference: other.Reference,
			Phone:     recent.CustomerPhone,
		})
		require.NoError(t, err)
		require.NotNil(t, got.JobID)
		assert.Equal(t, other.ID, *got.JobID)
		assert.Equal(t, model.ConfidenceHigh, got.Confidence)
	})

	t.Run("unknown id falls through to reference", func(t *testing.T) {
		got, err := m.MatchToJob(context.Background(), Candidate{
			JobID:     "01NOSUCHJOB",
			Reference: other.Reference,
		})
		require.NoError(t, err)
		require.NotNil(t, got.JobID)
		assert.Equal(t, other.ID, *got.JobID)
	})

	t.Run("nothing matches", func(t *testing.T) {
		got, err := m.MatchToJob(context.Background(), Candidate{Phone: "+447700900000"})
		require.NoError(t, err)
		assert.Nil(t, got.JobID)
		assert.Equal(t, model.ConfidenceNone, got.Confidence)
	})
}

func TestMatcher_PhoneRecencyConfidence(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want model.MatchConfidence
	}{
		{name: "five days old is medium", age: 5 * 24 * time.Hour, want: model.ConfidenceMedium},
		{name: "thirty days old is medium", age: 30 * 24 * time.Hour, want: model.ConfidenceMedium},
		{name: "sixty days old is low", age: 60 * 24 * time.Hour, want: model.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &model.Job{ID: "01JOBPHONE", CustomerPhone: "+447700900123", CreatedAt: time.Now().Add(-tt.age)}
			m := NewMatcher(&fakeJobs{byPhone: map[string]*model.Job{job.CustomerPhone: job}})

			got, err := m.MatchToJob(context.Background(), Candidate{Phone: job.CustomerPhone})
			require.NoError(t, err)
			require.NotNil(t, got.JobID)
			assert.Equal(t, tt.want, got.Confidence)
		})
	}
}

func TestMatcher_PhoneOlderThanNinetyDays(t *testing.T) {
	job := &model.Job{ID: "01JOBSTALE", CustomerPhone: "+447700900123", CreatedAt: time.Now().AddDate(0, 0, -120)}
	m := NewMatcher(&fakeJobs{byPhone: map[string]*model.Job{job.CustomerPhone: job}})

	got, err := m.MatchToJob(context.Background(), Candidate{Phone: job.CustomerPhone})
	require.NoError(t, err)
	assert.Nil(t, got.JobID)
	assert.Equal(t, model.ConfidenceNone, got.Confidence)
}

func TestIdempotencyKey(t *testing.T) {
	base := time.Date(2026, 3, 2, 14, 2, 10, 0, time.UTC)

	t.Run("same bucket collapses", func(t *testing.T) {
		a := IdempotencyKey("+447700900123", "screen cracked again", base)
		b := IdempotencyKey("+447700900123", "screen cracked again", base.Add(2*time.Minute))
		assert.Equal(t, a, b)
	})

	t.Run("different bucket differs", func(t *testing.T) {
		a := IdempotencyKey("+447700900123", "screen cracked again", base)
		b := IdempotencyKey("+447700900123", "screen cracked again", base.Add(5*time.Minute))
		assert.NotEqual(t, a, b)
	})

	t.Run("phone is part of the key", func(t *testing.T) {
		a := IdempotencyKey("+447700900123", "screen cracked again", base)
		b := IdempotencyKey("+447700900999", "screen cracked again", base)
		assert.NotEqual(t, a, b)
	})

	t.Run("description beyond 100 chars is ignored", func(t *testing.T) {
		long := ""
		for i := 0; i < 100; i++ {
			long += "x"
		}
		a := IdempotencyKey("+447700900123", long+"tail one", base)
		b := IdempotencyKey("+447700900123", long+"other tail", base)
		assert.Equal(t, a, b)
	})

	t.Run("multibyte description truncates on a rune boundary", func(t *testing.T) {
		long := strings.Repeat("é", 100) // 200 bytes, 100 runes
		a := IdempotencyKey("+447700900123", long+"tail one", base)
		b := IdempotencyKey("+447700900123", long+"other tail", base)
		assert.Equal(t, a, b, "everything past the first 100 runes is ignored")

		// the 100th rune itself still matters
		c := IdempotencyKey("+447700900123", strings.Repeat("é", 99)+"ü tail", base)
		assert.NotEqual(t, a, c)
	})

	t.Run("key is hex sha256", func(t *testing.T) {
		require.Len(t, IdempotencyKey("+447700900123", "x", base), 64)
	})
}
