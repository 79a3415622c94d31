package workflow

import (
	"context"
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

// ---- fakes ----

type fakeJobs struct {
	repository.JobsRepository

	mu        sync.Mutex
	byID      map[string]*model.Job
	inserted  []model.Job
	createdOn int
	scheduled map[string]time.Time
}

func newFakeJobs(jobs ...*model.Job) *fakeJobs {
	f := &fakeJobs{byID: map[string]*model.Job{}, scheduled: map[string]time.Time{}}
	for _, j := range jobs {
		f.byID[j.ID] = j
	}
	return f
}

func (f *fakeJobs) Insert(_ context.Context, _ *sqlx.Tx, j model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := j
	f.byID[j.ID] = &cp
	f.inserted = append(f.inserted, j)
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeJobs) CountCreatedOn(_ context.Context, _ time.Time) (int, error) {
	return f.createdOn, nil
}

func (f *fakeJobs) UpdateStatus(_ context.Context, id string, status model.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Status = status
	return nil
}

func (f *fakeJobs) MarkDepositReceived(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.byID[id]
	j.DepositReceived = true
	j.Status = model.StatusPartsOrdered
	return nil
}

func (f *fakeJobs) SchedulePostCollectionSMS(_ context.Context, id string, at time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[id] = at
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.JobEvent
}

func (f *fakeEvents) Insert(_ context.Context, _ *sqlx.Tx, e model.JobEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) ListByJob(_ context.Context, jobID string) ([]model.JobEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.JobEvent
	for _, e := range f.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeNotifs struct {
	repository.NotificationsRepository

	mu       sync.Mutex
	inserted []model.StaffNotification
}

func (f *fakeNotifs) Insert(_ context.Context, _ *sqlx.Tx, n model.StaffNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, n)
	return nil
}

func (f *fakeNotifs) GetConfig(_ context.Context, _ string) (*model.NotificationConfig, error) {
	return nil, nil
}

type fakeSMS struct {
	repository.SMSRepository

	mu   sync.Mutex
	logs []model.SMSLog
}

func (f *fakeSMS) GetActiveTemplate(_ context.Context, key string) (*model.SMSTemplate, error) {
	return &model.SMSTemplate{Key: key, Body: "update for {customer_name}: {job_ref}", IsActive: true}, nil
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

type nopRelay struct{}

func (nopRelay) Send(_ context.Context, _, _, _ string) error { return nil }

// ---- helpers ----

type fixture struct {
	jobs   *fakeJobs
	events *fakeEvents
	notifs *fakeNotifs
	sms    *fakeSMS
	svc    *Service
}

func newFixture(t *testing.T, enforce bool, jobs ...*model.Job) *fixture {
	t.Helper()
	f := &fixture{
		jobs:   newFakeJobs(jobs...),
		events: &fakeEvents{},
		notifs: &fakeNotifs{},
		sms:    &fakeSMS{},
	}
	d := notify.NewDispatcher(notify.DispatcherOpts{
		Jobs:     f.jobs,
		SMS:      f.sms,
		Notifs:   f.notifs,
		Events:   f.events,
		Relay:    nopRelay{},
		BaseURL:  "https://nfdrepairs.example.com",
		RelayURL: "https://relay.example.com/hook",
	})
	f.svc = NewService(f.jobs, f.events, f.notifs, d, enforce)
	return f
}

func onboardedJob(status model.JobStatus) *model.Job {
	return &model.Job{
		ID:                  "01JOB1",
		Reference:           "NFD-20260302-001",
		CustomerName:        "Sam",
		CustomerPhone:       "+447700900123",
		DeviceMake:          "Apple",
		DeviceModel:         "iPhone 12",
		Status:              status,
		OnboardingCompleted: true,
	}
}

func stepByName(steps []StepOutcome, name string) *StepOutcome {
	for i := range steps {
		if steps[i].Step == name {
			return &steps[i]
		}
	}
	return nil
}

// ---- tests ----

func TestChangeStatus_UnknownJob(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.ChangeStatus(context.Background(), "01NOSUCH", model.StatusInRepair, ChangeStatusOpts{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestChangeStatus_OnboardingGate(t *testing.T) {
	job := onboardedJob(model.StatusReadyToBookIn)
	job.OnboardingCompleted = false

	t.Run("blocked for workflow changes", func(t *testing.T) {
		f := newFixture(t, false, job)
		_, err := f.svc.ChangeStatus(context.Background(), job.ID, model.StatusInRepair, ChangeStatusOpts{})
		assert.ErrorIs(t, err, ErrOnboardingIncomplete)
	})

	t.Run("manual override skips the gate", func(t *testing.T) {
		f := newFixture(t, false, onboardedJobWithoutOnboarding())
		res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusInRepair, ChangeStatusOpts{Manual: true})
		require.NoError(t, err)
		assert.Equal(t, model.StatusInRepair, res.To)
	})
}

func onboardedJobWithoutOnboarding() *model.Job {
	j := onboardedJob(model.StatusReadyToBookIn)
	j.OnboardingCompleted = false
	return j
}

func TestChangeStatus_TransitionGuard(t *testing.T) {
	t.Run("guard off lets anything through", func(t *testing.T) {
		f := newFixture(t, false, onboardedJob(model.StatusReceived))
		res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusReadyToCollect, ChangeStatusOpts{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReadyToCollect, res.To)
	})

	t.Run("guard on rejects illegal edges", func(t *testing.T) {
		f := newFixture(t, true, onboardedJob(model.StatusReceived))
		_, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusReadyToCollect, ChangeStatusOpts{})
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("guard on allows legal edges", func(t *testing.T) {
		f := newFixture(t, true, onboardedJob(model.StatusInRepair))
		res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusReadyToCollect, ChangeStatusOpts{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReadyToCollect, res.To)
	})

	t.Run("manual override bypasses the guard", func(t *testing.T) {
		f := newFixture(t, true, onboardedJob(model.StatusReceived))
		res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusReadyToCollect, ChangeStatusOpts{Manual: true})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReadyToCollect, res.To)
	})
}

func TestChangeStatus_SideEffectSequence(t *testing.T) {
	f := newFixture(t, false, onboardedJob(model.StatusInRepair))

	res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusReadyToCollect, ChangeStatusOpts{Actor: "alice"})
	require.NoError(t, err)

	// status write recorded first, then the rest of the sequence
	require.NotEmpty(t, res.Steps)
	assert.Equal(t, StepStatusWrite, res.Steps[0].Step)
	assert.True(t, res.Steps[0].OK)

	require.NotNil(t, stepByName(res.Steps, StepAuditEvent))
	require.NotNil(t, stepByName(res.Steps, StepStaffNotification))
	require.NotNil(t, stepByName(res.Steps, StepSMS))
	require.NotNil(t, stepByName(res.Steps, StepEmail))

	// persisted state
	job, _ := f.jobs.GetByID(context.Background(), "01JOB1")
	assert.Equal(t, model.StatusReadyToCollect, job.Status)

	events, _ := f.events.ListByJob(context.Background(), "01JOB1")
	require.Len(t, events, 1)
	assert.Equal(t, model.EventStatusChange, events[0].Type)
	assert.Equal(t, "alice", events[0].Actor)
	assert.Contains(t, events[0].Message, "In Repair")
	assert.Contains(t, events[0].Message, "Ready To Collect")

	require.Len(t, f.notifs.inserted, 1)
	assert.Contains(t, f.notifs.inserted[0].Title, "NFD-20260302-001")
}

func TestChangeStatus_OffListStatusSkipsSMS(t *testing.T) {
	f := newFixture(t, false, onboardedJob(model.StatusReadyToBookIn))

	res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusInRepair, ChangeStatusOpts{})
	require.NoError(t, err)

	sms := stepByName(res.Steps, StepSMS)
	require.NotNil(t, sms)
	assert.True(t, sms.OK)
	assert.True(t, sms.Skipped)
	assert.Zero(t, len(f.sms.logs))
}

func TestChangeStatus_CollectedSchedulesReviewSMS(t *testing.T) {
	f := newFixture(t, false, onboardedJob(model.StatusReadyToCollect))

	res, err := f.svc.ChangeStatus(context.Background(), "01JOB1", model.StatusCollected, ChangeStatusOpts{})
	require.NoError(t, err)

	step := stepByName(res.Steps, StepScheduleReviewSMS)
	require.NotNil(t, step)
	assert.True(t, step.OK)

	at, ok := f.jobs.scheduled["01JOB1"]
	require.True(t, ok, "send time must be persisted")
	assert.True(t, at.After(time.Now()), "scheduled in the future")
}

func TestMarkDepositReceived(t *testing.T) {
	t.Run("flips deposit and status together", func(t *testing.T) {
		job := onboardedJob(model.StatusAwaitingDeposit)
		job.DepositRequired = true
		amount := model.DepositGBP
		job.DepositAmount = &amount
		f := newFixture(t, false, job)

		res, err := f.svc.MarkDepositReceived(context.Background(), job.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPartsOrdered, res.To)

		got, _ := f.jobs.GetByID(context.Background(), job.ID)
		assert.True(t, got.DepositReceived)
		assert.Equal(t, model.StatusPartsOrdered, got.Status)

		events, _ := f.events.ListByJob(context.Background(), job.ID)
		require.Len(t, events, 1)
		assert.Contains(t, events[0].Message, "£20.00")
	})

	t.Run("rejected when not awaiting deposit", func(t *testing.T) {
		f := newFixture(t, false, onboardedJob(model.StatusInRepair))
		_, err := f.svc.MarkDepositReceived(context.Background(), "01JOB1", "")
		assert.ErrorIs(t, err, ErrNotAwaitingDeposit)
	})

	t.Run("rejected when already received", func(t *testing.T) {
		job := onboardedJob(model.StatusAwaitingDeposit)
		job.DepositReceived = true
		f := newFixture(t, false, job)
		_, err := f.svc.MarkDepositReceived(context.Background(), job.ID, "")
		assert.ErrorIs(t, err, ErrDepositAlreadyTaken)
	})
}

func TestScheduleCollectionSMS(t *testing.T) {
	t.Run("persists a future send time", func(t *testing.T) {
		f := newFixture(t, false, onboardedJob(model.StatusCollected))

		at, err := f.svc.ScheduleCollectionSMS(context.Background(), "01JOB1")
		require.NoError(t, err)
		assert.True(t, at.After(time.Now()))
		assert.Equal(t, at, f.jobs.scheduled["01JOB1"])
	})

	t.Run("idempotent once sent", func(t *testing.T) {
		job := onboardedJob(model.StatusCompleted)
		sent := time.Now().Add(-time.Hour)
		job.PostCollectionSMSSentAt = &sent
		f := newFixture(t, false, job)

		at, err := f.svc.ScheduleCollectionSMS(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, at.Equal(sent))
		_, rescheduled := f.jobs.scheduled[job.ID]
		assert.False(t, rescheduled)
	})
}
