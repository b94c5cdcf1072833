package watcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/watcher"
)

type fakeRunner struct {
	mu         sync.Mutex
	pending    int
	pendingErr error
	runErr     error
	runs       int
}

func (f *fakeRunner) Pending(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, f.pendingErr
}

func (f *fakeRunner) Run(context.Context) (*session.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.pending = 0
	return &session.Report{SessionID: "s1"}, nil
}

func (f *fakeRunner) setPending(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = n
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestPoll_RunsOnlyDatasetsWithFiles(t *testing.T) {
	busy := &fakeRunner{pending: 2}
	idle := &fakeRunner{}
	var reported []string
	w := watcher.New(time.Hour, func(_ context.Context, ds string, r *session.Report) {
		reported = append(reported, ds+":"+r.SessionID)
	}, nil)
	w.Add("ssda903", busy)
	w.Add("cin", idle)

	assert.Equal(t, 1, w.Poll(context.Background()))
	assert.Equal(t, 1, busy.runCount())
	assert.Equal(t, 0, idle.runCount())
	assert.Equal(t, []string{"ssda903:s1"}, reported)

	// source drained by the session
	assert.Equal(t, 0, w.Poll(context.Background()))
}

func TestPoll_FailuresMoveOn(t *testing.T) {
	broken := &fakeRunner{pendingErr: errors.New("bucket gone")}
	failing := &fakeRunner{pending: 1, runErr: errors.New("bad schema")}
	ok := &fakeRunner{pending: 1}
	w := watcher.New(time.Hour, nil, nil)
	w.Add("a", broken)
	w.Add("b", failing)
	w.Add("c", ok)

	assert.Equal(t, 1, w.Poll(context.Background()))
	assert.Equal(t, 1, failing.runCount())
	assert.Equal(t, 1, ok.runCount())
}

func TestPoll_CancelledContext(t *testing.T) {
	r := &fakeRunner{pending: 1}
	w := watcher.New(time.Hour, nil, nil)
	w.Add("a", r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, w.Poll(ctx))
	assert.Equal(t, 0, r.runCount())
}

func TestWatcher_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeRunner{pending: 1}
	w := watcher.New(20*time.Millisecond, nil, nil)
	w.Add("pnw", r)
	w.Start(context.Background())

	require.Eventually(t, func() bool { return r.runCount() == 1 }, time.Second, 5*time.Millisecond)
	r.setPending(3)
	require.Eventually(t, func() bool { return r.runCount() == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
