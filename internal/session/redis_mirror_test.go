package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisMirrorSave(t *testing.T) {
	mr := miniredis.RunT(t)

	mirror, err := NewRedisMirror(mr.Addr(), time.Hour, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	sess := &ExecutionSession{
		ID:             "sess-1",
		ConversationID: "conv-1",
		OriginalQuery:  "hello",
		Status:         StatusExecuting,
		Results:        map[string]string{"a": "done"},
		CreatedAt:      time.Now(),
	}
	require.NoError(t, mirror.Save(context.Background(), sess))

	raw, err := mr.Get("orchestration:session:sess-1")
	require.NoError(t, err)

	var stored ExecutionSession
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "conv-1", stored.ConversationID)
	assert.Equal(t, StatusExecuting, stored.Status)
	assert.Equal(t, "done", stored.Results["a"])

	ttl := mr.TTL("orchestration:session:sess-1")
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisMirrorUnreachable(t *testing.T) {
	_, err := NewRedisMirror("127.0.0.1:1", time.Hour, zap.NewNop())
	assert.Error(t, err)
}
