package mediaremover

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDestroyer struct {
	mock.Mock
	calls atomic.Int32
}

func (m *mockDestroyer) Destroy(ctx context.Context, publicID string) error {
	defer m.calls.Add(1)
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func TestMediaRemover(t *testing.T) {
	t.Run("Queued ids are destroyed on tick", func(t *testing.T) {
		destroyer := &mockDestroyer{}
		destroyer.On("Destroy", mock.Anything, "a").Return(nil).Once()
		destroyer.On("Destroy", mock.Anything, "b").Return(nil).Once()

		remover := New(destroyer, 10, 10*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		remover.Run(ctx)

		remover.EnqueueJob("a", "", "b")

		assert.Eventually(t, func() bool {
			return destroyer.calls.Load() == 2
		}, time.Second, 5*time.Millisecond)

		cancel()
		remover.Wait()
		destroyer.AssertExpectations(t)
	})

	t.Run("Cancellation flushes what is left", func(t *testing.T) {
		destroyer := &mockDestroyer{}
		destroyer.On("Destroy", mock.Anything, "late").Return(nil).Once()

		remover := New(destroyer, 10, time.Hour)
		remover.EnqueueJob("late")

		ctx, cancel := context.WithCancel(context.Background())
		remover.Run(ctx)
		cancel()
		remover.Wait()

		destroyer.AssertExpectations(t)
	})

	t.Run("Failures are reported and retried a bounded number of times", func(t *testing.T) {
		destroyer := &mockDestroyer{}
		destroyer.On("Destroy", mock.Anything, "stubborn").Return(errors.New("host is down"))

		var (
			mu       sync.Mutex
			reported []error
		)
		remover := New(destroyer, 10, 5*time.Millisecond)
		remover.ListenErrors(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		})

		ctx, cancel := context.WithCancel(context.Background())
		remover.Run(ctx)
		remover.EnqueueJob("stubborn")

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(reported) == maxAttempts
		}, time.Second, 5*time.Millisecond)

		// No more attempts after the limit.
		time.Sleep(30 * time.Millisecond)
		cancel()
		remover.Wait()

		destroyer.AssertNumberOfCalls(t, "Destroy", maxAttempts)
		mu.Lock()
		assert.ErrorContains(t, reported[0], "host is down")
		mu.Unlock()
	})

	t.Run("Enqueue after stop does not block", func(t *testing.T) {
		remover := New(&mockDestroyer{}, 0, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		remover.Run(ctx)
		cancel()
		remover.Wait()

		remover.EnqueueJob("ignored")
	})
}
