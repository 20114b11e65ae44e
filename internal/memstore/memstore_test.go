package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrelay/internal/common"
	"supportrelay/internal/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (common.MessageStore, common.ConversationStore) {
		return NewStores()
	})
}

func TestEnsure_ConcurrentFirstMessages(t *testing.T) {
	_, conversations := NewStores()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := conversations.Ensure(context.Background(), "race", "u1", time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	messages, _ := NewStores()
	ctx := context.Background()

	_, err := messages.Append(ctx, &common.ChatMessage{Role: common.RoleUser, Message: "original", ConversationID: "c1"})
	require.NoError(t, err)

	rows, err := messages.FindByConversation(ctx, "c1", "")
	require.NoError(t, err)
	rows[0].Message = "mutated"

	again, err := messages.FindByConversation(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Message)
}

func TestAppend_HonoursCancelledContext(t *testing.T) {
	messages, _ := NewStores()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := messages.Append(ctx, &common.ChatMessage{Role: common.RoleUser, Message: "x", ConversationID: "c1"})
	var storeErr *common.StoreError
	assert.ErrorAs(t, err, &storeErr)
}
