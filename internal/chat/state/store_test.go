// internal/chat/state/store_test.go
package state

import (
	"context"
	"errors"
	"testing"
	"time"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, ttl, logger.NewTestLogger(t)), mr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestStore_SaveAndGet(t *testing.T) {
	store, _ := createTestStore(t, 5*time.Minute)
	ctx := context.Background()

	params := map[string]interface{}{
		"dni":   "40123456",
		"_tool": "consultar_notas",
	}
	require.NoError(t, store.Save(ctx, "session-1", models.StateAwaitingToolParams, params))

	st := store.Get(ctx, "session-1")
	assert.Equal(t, models.StateAwaitingToolParams, st.StateName)
	assert.Equal(t, "40123456", st.PartialParameters["dni"])
	assert.Equal(t, "consultar_notas", st.PartialParameters["_tool"])
	assert.True(t, st.InClarification())
	assert.Equal(t, "consultar_notas", st.SelectedTool())
}

func TestStore_Get_MissingSessionReadsAsEmptyState(t *testing.T) {
	store, _ := createTestStore(t, 5*time.Minute)

	st := store.Get(context.Background(), "never-seen")

	assert.Equal(t, models.StateNone, st.StateName)
	assert.Empty(t, st.PartialParameters)
	assert.False(t, st.InClarification())
}

func TestStore_Save_NoneClearsBothKeys(t *testing.T) {
	store, mr := createTestStore(t, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1"}))
	require.True(t, mr.Exists("chat:state:s1"))
	require.True(t, mr.Exists("chat:params:s1"))

	require.NoError(t, store.Save(ctx, "s1", models.StateNone, nil))

	assert.False(t, mr.Exists("chat:state:s1"))
	assert.False(t, mr.Exists("chat:params:s1"))
}

func TestStore_Clear_RemovesStateAndParams(t *testing.T) {
	store, mr := createTestStore(t, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1"}))
	require.NoError(t, store.Clear(ctx, "s1"))

	assert.False(t, mr.Exists("chat:state:s1"))
	assert.False(t, mr.Exists("chat:params:s1"))
	assert.Equal(t, models.StateNone, store.Get(ctx, "s1").StateName)
}

// ==========================
// TTL Behavior Tests
// ==========================

func TestStore_StateExpiresAfterTTL(t *testing.T) {
	store, mr := createTestStore(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1"}))

	mr.FastForward(31 * time.Second)

	st := store.Get(ctx, "s1")
	assert.Equal(t, models.StateNone, st.StateName, "expired state must read back as empty")
	assert.Empty(t, st.PartialParameters)
}

func TestStore_SaveResetsTTLWindow(t *testing.T) {
	store, mr := createTestStore(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1"}))
	mr.FastForward(20 * time.Second)

	// A second save within the window restarts the clock for both keys.
	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1", "curso": "MAT101"}))
	mr.FastForward(20 * time.Second)

	st := store.Get(ctx, "s1")
	assert.Equal(t, models.StateAwaitingToolParams, st.StateName)
	assert.Equal(t, "MAT101", st.PartialParameters["curso"])
}

// ==========================
// Degraded Mode Tests
// ==========================

func TestStore_Get_CacheUnavailableDegradesToEmptyState(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, 5*time.Minute, logger.NewTestLogger(t))

	mock.ExpectGet("chat:state:s1").SetErr(errors.New("connection refused"))

	st := store.Get(context.Background(), "s1")

	assert.Equal(t, models.StateNone, st.StateName)
	assert.Empty(t, st.PartialParameters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Save_CacheUnavailableReportsStoreError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, 5*time.Minute, logger.NewTestLogger(t))

	mock.ExpectSet("chat:state:s1", string(models.StateAwaitingToolParams), 5*time.Minute).
		SetErr(errors.New("connection refused"))

	err := store.Save(context.Background(), "s1", models.StateAwaitingToolParams, nil)

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeStateStoreUnavailable, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_CorruptParamsReadAsEmpty(t *testing.T) {
	store, mr := createTestStore(t, 5*time.Minute)

	mr.Set("chat:state:s1", string(models.StateAwaitingToolParams))
	mr.Set("chat:params:s1", "{not json")

	st := store.Get(context.Background(), "s1")
	assert.Equal(t, models.StateAwaitingToolParams, st.StateName)
	assert.Empty(t, st.PartialParameters)
}

// ==========================
// Name Capture Tests
// ==========================

func TestStore_NameIsIndependentOfToolState(t *testing.T) {
	store, _ := createTestStore(t, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.SaveName(ctx, "s1", "Lucía"))
	require.NoError(t, store.Save(ctx, "s1", models.StateAwaitingToolParams, map[string]interface{}{"dni": "1"}))

	// Clearing the conversation state never touches the captured name.
	require.NoError(t, store.Clear(ctx, "s1"))
	assert.Equal(t, "Lucía", store.GetName(ctx, "s1"))
}

func TestStore_GetName_MissingReturnsEmpty(t *testing.T) {
	store, _ := createTestStore(t, 5*time.Minute)
	assert.Equal(t, "", store.GetName(context.Background(), "anonymous"))
}
