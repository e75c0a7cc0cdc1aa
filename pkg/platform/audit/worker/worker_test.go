package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "healthbff/pkg/platform/audit"
)

type flakyStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *flakyStore) Append(_ context.Context, e audit.Event) error {
	if e.Action == "boom" {
		return errors.New("sink down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestWorker_ContinuesAfterSinkFailure(t *testing.T) {
	store := &flakyStore{}
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{Action: "boom"}
	inbox <- audit.Event{Action: string(audit.EventSessionCreated)}
	close(inbox)

	err := NewWorker(store, inbox, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	assert.Equal(t, string(audit.EventSessionCreated), store.events[0].Action)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(&flakyStore{}, make(chan audit.Event), nil).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
