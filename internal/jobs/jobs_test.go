package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/testfixtures"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubSweeper struct {
	mu     sync.Mutex
	calls  []time.Time
	marked int
	err    error
}

func (s *stubSweeper) MarkOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, now)
	return s.marked, s.err
}

func TestOverdueJobRunOnce(t *testing.T) {
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	core, logs := observer.New(zap.InfoLevel)
	sweeper := &stubSweeper{marked: 2}

	job := NewOverdueJob(sweeper, func() time.Time { return at }, time.Second, zap.New(core))
	marked, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	require.Len(t, sweeper.calls, 1)
	assert.True(t, sweeper.calls[0].Equal(at))
	assert.Equal(t, 1, logs.FilterMessage("meetings marked overdue").Len())

	sweeper.err = errors.New("store offline")
	job.Run()
	assert.Equal(t, 1, logs.FilterMessage("overdue sweep failed").Len())
}

func TestOverdueJobAgainstServices(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	services := testfixtures.NewServiceFactory(testfixtures.WithClock(clock)).NewServices(nil)
	testfixtures.Seed{Meetings: []persistence.Meeting{
		testfixtures.Meeting("m-1", "staff-1", testfixtures.At(0, 9, 0), testfixtures.At(0, 10, 0), testfixtures.WithStatus(meeting.StatusConfirmed)),
	}}.Apply(t, services.Store)

	job := NewOverdueJob(services.Meetings, clock.NowFunc(), 0, nil)

	marked, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, marked, "meeting has not ended yet")

	clock.Set(testfixtures.At(0, 10, 0))
	marked, err = job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	stored, err := services.Store.GetMeeting(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusOverdue, stored.Status)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, nil)
	err := s.Add("overdue", "every now and then", cron.FuncJob(func() {}))
	assert.Error(t, err)
	require.NoError(t, s.Add("overdue", DefaultOverdueSchedule, cron.FuncJob(func() {})))
}

func TestSchedulerRunsAndStops(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.UTC)
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add("probe", "@every 1s", cron.FuncJob(func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})))

	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestSchedulerRecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewScheduler(zap.New(core), time.UTC)
	require.NoError(t, s.Add("boom", "@every 1s", cron.FuncJob(func() { panic("boom") })))

	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for logs.FilterMessage("panic").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NotZero(t, logs.FilterMessage("panic").Len())
}
