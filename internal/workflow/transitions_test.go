package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nfdrepairs/repair-ops/internal/model"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name          string
		from, to      model.JobStatus
		partsRequired bool
		want          bool
	}{
		{name: "received to awaiting deposit with parts", from: model.StatusReceived, to: model.StatusAwaitingDeposit, partsRequired: true, want: true},
		{name: "received skips deposit without parts", from: model.StatusReceived, to: model.StatusReadyToBookIn, partsRequired: false, want: true},
		{name: "received cannot skip deposit with parts", from: model.StatusReceived, to: model.StatusReadyToBookIn, partsRequired: true, want: false},
		{name: "awaiting deposit to parts ordered", from: model.StatusAwaitingDeposit, to: model.StatusPartsOrdered, partsRequired: true, want: true},
		{name: "in repair may be delayed", from: model.StatusInRepair, to: model.StatusDelayed, partsRequired: false, want: true},
		{name: "in repair to ready to collect", from: model.StatusInRepair, to: model.StatusReadyToCollect, partsRequired: false, want: true},
		{name: "delayed resumes to ready to collect", from: model.StatusDelayed, to: model.StatusReadyToCollect, partsRequired: false, want: true},
		{name: "no skipping ahead", from: model.StatusReadyToBookIn, to: model.StatusReadyToCollect, partsRequired: false, want: false},
		{name: "no going backwards", from: model.StatusReadyToCollect, to: model.StatusInRepair, partsRequired: false, want: false},
		{name: "cancel from mid flow", from: model.StatusInRepair, to: model.StatusCancelled, partsRequired: false, want: true},
		{name: "cancel from awaiting deposit", from: model.StatusAwaitingDeposit, to: model.StatusCancelled, partsRequired: true, want: true},
		{name: "completed is terminal", from: model.StatusCompleted, to: model.StatusCancelled, partsRequired: false, want: false},
		{name: "cancelled is terminal", from: model.StatusCancelled, to: model.StatusReceived, partsRequired: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.from, tt.to, tt.partsRequired))
		})
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name            string
		current         model.JobStatus
		partsRequired   bool
		depositReceived bool
		want            model.JobStatus
		ok              bool
	}{
		{name: "received with parts", current: model.StatusReceived, partsRequired: true, want: model.StatusAwaitingDeposit, ok: true},
		{name: "received without parts", current: model.StatusReceived, want: model.StatusReadyToBookIn, ok: true},
		{name: "awaiting deposit blocked until paid", current: model.StatusAwaitingDeposit, partsRequired: true, ok: false},
		{name: "awaiting deposit paid", current: model.StatusAwaitingDeposit, partsRequired: true, depositReceived: true, want: model.StatusPartsOrdered, ok: true},
		{name: "delayed resumes", current: model.StatusDelayed, want: model.StatusReadyToCollect, ok: true},
		{name: "collected to completed", current: model.StatusCollected, want: model.StatusCompleted, ok: true},
		{name: "completed has no next", current: model.StatusCompleted, ok: false},
		{name: "cancelled has no next", current: model.StatusCancelled, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextStatus(tt.current, tt.partsRequired, tt.depositReceived)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, model.StatusAwaitingDeposit, InitialStatus(true))
	assert.Equal(t, model.StatusReceived, InitialStatus(false))
}
