package inmem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunnable struct {
	id string

	mu       sync.Mutex
	runErr   error
	runCalls int

	resumeErr   error
	resumeCalls int
	lastResume  any

	waiting    bool
	cancelled  bool
	blockUntil chan struct{}
}

func (f *fakeRunnable) ProcessID() string { return f.id }

func (f *fakeRunnable) Run(ctx context.Context) error {
	if f.blockUntil != nil {
		<-f.blockUntil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	return f.runErr
}

func (f *fakeRunnable) Resume(ctx context.Context, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	f.lastResume = value
	return f.resumeErr
}

func (f *fakeRunnable) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
}

func (f *fakeRunnable) Waiting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

func TestStartRejectsNilProcess(t *testing.T) {
	_, err := New().Start(context.Background(), nil)
	require.Error(t, err)
}

func TestStartRunsProcessAndWaitReturnsItsError(t *testing.T) {
	p := &fakeRunnable{id: "p1", runErr: errors.New("boom")}
	h, err := New().Start(context.Background(), p)
	require.NoError(t, err)

	err = h.Wait(context.Background())
	assert.EqualError(t, err, "boom")

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 1, p.runCalls)
}

func TestWaitTimesOutViaContext(t *testing.T) {
	p := &fakeRunnable{id: "p1", blockUntil: make(chan struct{})}
	defer close(p.blockUntil)
	h, err := New().Start(context.Background(), p)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResumeDeliversValueAndReArmsWait(t *testing.T) {
	p := &fakeRunnable{id: "p1", waiting: true}
	h, err := New().Start(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))

	err = h.Resume(context.Background(), "the-answer")
	require.NoError(t, err)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 1, p.resumeCalls)
	assert.Equal(t, "the-answer", p.lastResume)
}

func TestResumePropagatesProcessError(t *testing.T) {
	p := &fakeRunnable{id: "p1", waiting: true, resumeErr: errors.New("resume failed")}
	h, err := New().Start(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))

	err = h.Resume(context.Background(), nil)
	assert.EqualError(t, err, "resume failed")
	assert.EqualError(t, h.Wait(context.Background()), "resume failed")
}

func TestCancelDelegatesToProcess(t *testing.T) {
	p := &fakeRunnable{id: "p1", waiting: true}
	h, err := New().Start(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))

	h.Cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.cancelled)
}
