package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/answer-agent/internal/agent"
	"github.com/dreamup/answer-agent/internal/config"
	"github.com/dreamup/answer-agent/internal/store"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "answers.json")

	st, err := OpenStore(ctx, config.StoreConfig{Backend: store.BackendFile, Path: path})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "2+2", "4"))
	require.NoError(t, st.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Backend: "redis"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
	category, ok := agent.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, agent.ErrorCategoryStorage, category)
}

func TestNewSolver(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Store:  config.StoreConfig{Backend: store.BackendSQLite, Path: filepath.Join(t.TempDir(), "answers.db")},
		OpenAI: config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"},
	}

	slv, st, err := NewSolver(ctx, cfg, nil)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, slv.Remember(ctx, "bookwork:1A", "12"))
	lookup, err := slv.Lookup(ctx, "bookwork:1A")
	require.NoError(t, err)
	assert.True(t, lookup.Hit)
	assert.Equal(t, "12", lookup.Answer)

	t.Setenv("OPENAI_API_KEY", "")
	cfg.OpenAI.APIKey = ""
	_, _, err = NewSolver(ctx, cfg, nil)
	require.Error(t, err)
}
