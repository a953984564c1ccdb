package agentswarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledSession_BatchesWithinDelayWindow(t *testing.T) {
	s := newEchoSwarm(t)
	ctx := context.Background()

	handle, err := s.SessionScheduled(ctx, "c1", "single", 50*time.Millisecond)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i, msg := range []string{"first", "second"} {
		i, msg := i, msg
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := handle.Complete(ctx, msg)
			require.NoError(t, err)
			results[i] = out
		}()
		time.Sleep(10 * time.Millisecond) // fix arrival order inside the window
	}
	wg.Wait()

	// The superseded message was committed without a completion; the last
	// one ran the turn.
	assert.Empty(t, results[0])
	assert.Equal(t, "second", results[1])

	raw, err := s.GetRawHistory(ctx, "c1")
	require.NoError(t, err)
	var userContents []string
	for _, msg := range raw {
		if msg.Role == core.RoleUser {
			userContents = append(userContents, msg.Content)
		}
	}
	assert.Contains(t, userContents, "first")
	assert.Contains(t, userContents, "second")
}

func TestScheduledSession_SingleMessageCompletesNormally(t *testing.T) {
	s := newEchoSwarm(t)
	ctx := context.Background()

	handle, err := s.SessionScheduled(ctx, "c1", "single", 10*time.Millisecond)
	require.NoError(t, err)

	out, err := handle.Complete(ctx, "solo message")
	require.NoError(t, err)
	assert.Equal(t, "solo message", out)
}
