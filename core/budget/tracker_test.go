package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker_Defaults(t *testing.T) {
	tracker := NewTracker(Config{})

	assert.Equal(t, DefaultMaxTokens, tracker.MaxTokens())
	assert.Equal(t, DefaultMaxFiles, tracker.MaxFiles())
	assert.Equal(t, DefaultMaxTokens, tracker.RemainingTokens())
	assert.Equal(t, DefaultMaxFiles, tracker.RemainingFiles())
}

func TestTryReserve_CommitsOnSuccess(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 100, MaxFiles: 2})

	require.True(t, tracker.TryReserve(60, 1))
	assert.Equal(t, 40, tracker.RemainingTokens())
	assert.Equal(t, 1, tracker.RemainingFiles())
	assert.Equal(t, 60, tracker.SpentTokens())
	assert.Equal(t, 1, tracker.SpentFiles())
}

func TestTryReserve_NoPartialReservation(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 100, MaxFiles: 1})

	require.True(t, tracker.TryReserve(20, 1))

	// Tokens would fit but the file ceiling is exhausted.
	assert.False(t, tracker.TryReserve(10, 1))
	assert.Equal(t, 80, tracker.RemainingTokens())
	assert.Equal(t, 0, tracker.RemainingFiles())
}

func TestTryReserve_TokenCeiling(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 50, MaxFiles: 10})

	assert.False(t, tracker.TryReserve(51, 1))
	assert.True(t, tracker.TryReserve(50, 1))
	assert.False(t, tracker.TryReserve(1, 1))
}

func TestTryReserve_NegativeCostRefused(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 100, MaxFiles: 5})

	assert.False(t, tracker.TryReserve(-1, 1))
	assert.False(t, tracker.TryReserve(10, -1))
	assert.Equal(t, 100, tracker.RemainingTokens())
}

func TestFits_DoesNotCommit(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 100, MaxFiles: 5})

	assert.True(t, tracker.Fits(100, 5))
	assert.Equal(t, 100, tracker.RemainingTokens())
	assert.Equal(t, 5, tracker.RemainingFiles())
}

func TestRelease_RefusesFurtherReservations(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 100, MaxFiles: 5})

	tracker.Release()

	assert.True(t, tracker.Released())
	assert.False(t, tracker.TryReserve(1, 1))
	assert.False(t, tracker.Fits(1, 1))

	// Idempotent.
	tracker.Release()
	assert.True(t, tracker.Released())
}

func TestTryReserve_ConcurrentNeverOverspends(t *testing.T) {
	tracker := NewTracker(Config{MaxTokens: 1000, MaxFiles: 100})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.TryReserve(30, 3)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, tracker.SpentTokens(), 1000)
	assert.LessOrEqual(t, tracker.SpentFiles(), 100)
	assert.Equal(t, tracker.SpentTokens()/30, tracker.SpentFiles()/3)
}
