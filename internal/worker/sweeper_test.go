package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

type fakeJobs struct {
	repository.JobsRepository

	mu     sync.Mutex
	due    []model.Job
	marked map[string]string
}

func (f *fakeJobs) ListDuePostCollectionSMS(_ context.Context, _ time.Time) ([]model.Job, error) {
	return f.due, nil
}

func (f *fakeJobs) MarkPostCollectionSMSSent(_ context.Context, id string, _ time.Time, deliveryStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = map[string]string{}
	}
	f.marked[id] = deliveryStatus
	return nil
}

type fakeSMS struct {
	repository.SMSRepository

	mu   sync.Mutex
	logs []model.SMSLog
}

func (f *fakeSMS) InsertLog(_ context.Context, _ *sqlx.Tx, l model.SMSLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeSMS) MarkLogResult(_ context.Context, _ string, _ model.SMSStatus, _ *string) error {
	return nil
}

// failFor fails sends to the given phone and succeeds otherwise.
type failFor struct {
	phone string
}

func (f failFor) Send(_ context.Context, _, phone, _ string) error {
	if phone == f.phone {
		return errors.New("relay down")
	}
	return nil
}

func dueJob(id, phone string) model.Job {
	body := "review ask"
	return model.Job{
		ID:                    id,
		Reference:             "NFD-" + id,
		CustomerPhone:         phone,
		PostCollectionSMSBody: &body,
	}
}

func TestSweep(t *testing.T) {
	jobs := &fakeJobs{due: []model.Job{
		dueJob("01A", "+447700900001"),
		dueJob("01B", "+447700900002"),
		dueJob("01C", "+447700900003"),
	}}
	d := notify.NewDispatcher(notify.DispatcherOpts{
		Jobs:     jobs,
		SMS:      &fakeSMS{},
		Relay:    failFor{phone: "+447700900002"},
		RelayURL: "https://relay.example.com/hook",
	})

	res, err := Sweep(context.Background(), jobs, d)
	require.NoError(t, err)

	// one failure does not abort the pass
	assert.Equal(t, 3, res.Due)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "NFD-01B")

	assert.Equal(t, model.SMSSent.String(), jobs.marked["01A"])
	assert.Equal(t, model.SMSFailed.String(), jobs.marked["01B"])
	assert.Equal(t, model.SMSSent.String(), jobs.marked["01C"])
}

func TestSweep_NothingDue(t *testing.T) {
	jobs := &fakeJobs{}
	d := notify.NewDispatcher(notify.DispatcherOpts{Jobs: jobs, SMS: &fakeSMS{}, Relay: failFor{}})

	res, err := Sweep(context.Background(), jobs, d)
	require.NoError(t, err)
	assert.Zero(t, res.Due)
	assert.Empty(t, res.Errors)
}
