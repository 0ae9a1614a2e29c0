package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-backend/pkg/logger"
)

type fakeLocker struct {
	held     bool
	lease    *fakeLease
	acquires int
}

func (f *fakeLocker) TryAcquire(context.Context) (Lease, error) {
	f.acquires++
	if f.held {
		return nil, nil
	}
	f.lease = &fakeLease{}
	return f.lease, nil
}

type fakeLease struct {
	extends   int
	released  bool
	extendErr error
}

func (f *fakeLease) Extend(context.Context) error {
	f.extends++
	return f.extendErr
}

func (f *fakeLease) Release(context.Context) error {
	f.released = true
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, schedule *Schedule, locker Locker, now *time.Time) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Schedule: schedule, Lock: locker})
	require.NoError(t, err)
	svc.now = func() time.Time { return *now }
	return svc
}

func TestRunTickRunsEveryDueJobDespiteFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	locker := &fakeLocker{}
	now := fixedNow
	svc := newTestService(t, NewSchedule().Every(0, failing).Every(0, ok), locker, &now)

	require.NoError(t, svc.runTick(context.Background()))
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, locker.lease.extends)
	require.True(t, locker.lease.released)
}

func TestRunTickHonoursCadence(t *testing.T) {
	hourly := &testJob{name: "hourly"}
	daily := &testJob{name: "daily"}
	locker := &fakeLocker{}
	now := fixedNow
	svc := newTestService(t, NewSchedule().Every(time.Hour, hourly).Every(24*time.Hour, daily), locker, &now)

	require.NoError(t, svc.runTick(context.Background()))
	now = now.Add(time.Hour)
	require.NoError(t, svc.runTick(context.Background()))
	now = now.Add(30 * time.Minute)
	require.NoError(t, svc.runTick(context.Background()))

	require.Equal(t, 2, hourly.runs)
	require.Equal(t, 1, daily.runs)
	require.Equal(t, 2, locker.acquires)
}

func TestRunTickSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	job := &testJob{name: "expiry"}
	now := fixedNow
	svc := newTestService(t, NewSchedule().Every(time.Hour, job), &fakeLocker{held: true}, &now)

	require.NoError(t, svc.runTick(context.Background()))
	require.Zero(t, job.runs)

	// Not marked as ran, so the next tick retries.
	require.Len(t, svc.schedule.Due(now), 1)
}

func TestRunTickStopsWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	locker := &lostLeaseLocker{}
	now := fixedNow
	svc := newTestService(t, NewSchedule().Every(0, first).Every(0, second), locker, &now)

	require.NoError(t, svc.runTick(context.Background()))
	require.Equal(t, 1, first.runs)
	require.Zero(t, second.runs)
}

type lostLeaseLocker struct{}

func (lostLeaseLocker) TryAcquire(context.Context) (Lease, error) {
	return &fakeLease{extendErr: ErrLeaseLost}, nil
}

func TestScheduleNamesSorted(t *testing.T) {
	s := NewSchedule().Every(0, &testJob{name: "b"}).Every(0, &testJob{name: "a"}).Every(0, nil)
	require.Equal(t, []string{"a", "b"}, s.Names())
}
