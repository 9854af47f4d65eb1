package schedule_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duet-backup/core/reconcile"
	"duet-backup/core/remote/mocks"
	"duet-backup/core/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePasser struct {
	calls atomic.Int32
	delay time.Duration
	errs  []error
	// failed is attached to every returned run.
	failed []reconcile.Failure
	// onCall runs after each pass with its 1-based number.
	onCall func(n int)
}

func (f *fakePasser) RunPass(ctx context.Context) (*reconcile.Run, error) {
	n := int(f.calls.Add(1))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	var err error
	if n <= len(f.errs) {
		err = f.errs[n-1]
	}
	if f.onCall != nil {
		f.onCall(n)
	}
	return &reconcile.Run{ID: "run", State: reconcile.StateDone, Failed: f.failed}, err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingNotifier) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestRun_SinglePass(t *testing.T) {
	p := &fakePasser{}
	n := &recordingNotifier{}
	s := schedule.New(p, schedule.Options{Notifier: n}, zap.NewNop())

	err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, []string{"Single backup starting.", "Exiting normally after single backup"}, n.messages())
	assert.Equal(t, "run", s.Status().LastRun.ID)
}

func TestRun_SinglePassError(t *testing.T) {
	boom := errors.New("boom")
	p := &fakePasser{errs: []error{boom}}
	n := &recordingNotifier{err: errors.New("printer offline")}
	s := schedule.New(p, schedule.Options{Notifier: n}, nil)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Single backup starting.", "Backup failed: boom"}, n.messages())
}

func TestRun_SinglePassEmptySourceExitsNormally(t *testing.T) {
	p := &fakePasser{errs: []error{reconcile.ErrEmptySource}}
	n := &recordingNotifier{}
	s := schedule.New(p, schedule.Options{Notifier: n}, zap.NewNop())

	err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Single backup starting.", "Exiting normally after single backup"}, n.messages())
}

func TestRun_SinglePassReportsFailedFiles(t *testing.T) {
	p := &fakePasser{failed: []reconcile.Failure{
		{Op: reconcile.OpAdd, Path: "a.g", Error: "conflict"},
		{Op: reconcile.OpDelete, Path: "b.g", Error: "conflict"},
	}}
	n := &recordingNotifier{}
	s := schedule.New(p, schedule.Options{Notifier: n}, zap.NewNop())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{
		"Single backup starting.",
		"Backup finished with 2 failed file(s)",
		"Exiting normally after single backup",
	}, n.messages())
}

type timedNotifier struct {
	recordingNotifier
	timeouts map[string]time.Duration
}

func (r *timedNotifier) NotifyFor(ctx context.Context, msg string, d time.Duration) error {
	r.mu.Lock()
	r.timeouts[msg] = d
	r.mu.Unlock()
	return r.Notify(ctx, msg)
}

func TestRun_SinglePassStartMessageCloses(t *testing.T) {
	n := &timedNotifier{timeouts: map[string]time.Duration{}}
	s := schedule.New(&fakePasser{}, schedule.Options{Notifier: n}, zap.NewNop())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, map[string]time.Duration{"Single backup starting.": 20 * time.Second}, n.timeouts)
	assert.Equal(t, []string{"Single backup starting.", "Exiting normally after single backup"}, n.messages())
}

func TestRun_IntervalLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakePasser{onCall: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	s := schedule.New(p, schedule.Options{Interval: 5 * time.Millisecond}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestRun_WaitsForLastBackupPlusInterval(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	tree := new(mocks.Tree)
	tree.On("LastBackup", mock.Anything, "main").Return(now.Add(-30*time.Minute), nil)

	ctx, cancel := context.WithCancel(context.Background())
	p := &fakePasser{}
	s := schedule.New(p, schedule.Options{
		Interval:   time.Hour,
		Branch:     "main",
		LastBackup: tree,
		Now:        func() time.Time { return now },
	}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return s.Status().NextRun.Equal(now.Add(30 * time.Minute))
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int32(0), p.calls.Load())
	tree.AssertExpectations(t)
}

func TestRun_EmptySourceRetriesSooner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakePasser{errs: []error{reconcile.ErrEmptySource}, onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	s := schedule.New(p, schedule.Options{Interval: time.Hour, RetryAfterEmpty: 10 * time.Millisecond}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("empty source retry did not happen")
	}
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestTrigger_CollapsesConcurrentCalls(t *testing.T) {
	p := &fakePasser{delay: 200 * time.Millisecond}
	s := schedule.New(p, schedule.Options{}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := s.Trigger(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, run)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.False(t, s.Status().Running)
}
