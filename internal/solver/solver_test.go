package solver_test

import (
	"context"
	"errors"
	"testing"

	mock_solver "github.com/dreamup/answer-agent/internal/mocks/solver"
	"github.com/dreamup/answer-agent/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type memStore struct {
	data    map[string]string
	puts    int
	flushes int
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, id string) (string, bool, error) {
	a, ok := m.data[id]
	return a, ok, nil
}

func (m *memStore) Put(_ context.Context, id, answer string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[id] = answer
	return nil
}

func (m *memStore) Flush(context.Context) error {
	m.flushes++
	return nil
}

func TestSolver_Solve(t *testing.T) {
	ctx := context.Background()

	t.Run("miss calls completer once then hits cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := mock_solver.NewMockCompleter(ctrl)
		store := newMemStore()
		s := solver.New(store, completer, nil)

		q := solver.PendingQuestion{Kind: solver.KindNormal, Text: "2+2"}
		completer.EXPECT().Complete(gomock.Any(), q).Return(" Answer: 4 ", nil).Times(1)

		first, err := s.Solve(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "4", first.Answer)
		assert.Equal(t, solver.SourceComputed, first.Source)
		assert.Equal(t, "2+2", first.Identifier)
		assert.Equal(t, 1, store.puts)

		second, err := s.Solve(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "4", second.Answer)
		assert.Equal(t, solver.SourceCache, second.Source)
		assert.Equal(t, 1, store.puts)
	})

	t.Run("byte identical images share the cached answer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := mock_solver.NewMockCompleter(ctrl)
		store := newMemStore()
		s := solver.New(store, completer, nil)

		img := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
		completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("12,5 cm", nil).Times(1)

		first, err := s.Solve(ctx, solver.PendingQuestion{Image: img})
		require.NoError(t, err)
		assert.Equal(t, "12.5", first.Answer)
		assert.Len(t, first.Identifier, 64)

		copied := append([]byte(nil), img...)
		second, err := s.Solve(ctx, solver.PendingQuestion{Image: copied})
		require.NoError(t, err)
		assert.Equal(t, solver.SourceCache, second.Source)
		assert.Equal(t, first.Identifier, second.Identifier)
	})

	t.Run("completer failure stores fallback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := mock_solver.NewMockCompleter(ctrl)
		store := newMemStore()
		s := solver.New(store, completer, nil)

		apiErr := errors.New("rate limited")
		completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", apiErr)

		res, err := s.Solve(ctx, solver.PendingQuestion{Text: "what is 7*6"})
		require.NoError(t, err)
		assert.Equal(t, solver.FallbackAnswer, res.Answer)
		assert.Equal(t, solver.SourceFallback, res.Source)
		assert.ErrorIs(t, res.Err, apiErr)
		assert.Equal(t, "0", store.data["what is 7*6"])
	})

	t.Run("store failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := mock_solver.NewMockCompleter(ctrl)
		store := newMemStore()
		store.putErr = errors.New("disk full")
		s := solver.New(store, completer, nil)

		completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("3", nil)

		_, err := s.Solve(ctx, solver.PendingQuestion{Text: "1+2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("empty question is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := solver.New(newMemStore(), mock_solver.NewMockCompleter(ctrl), nil)

		_, err := s.Solve(ctx, solver.PendingQuestion{})
		assert.Error(t, err)
	})
}

func TestSolver_LookupAndRemember(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newMemStore()
	s := solver.New(store, mock_solver.NewMockCompleter(ctrl), nil)

	miss, err := s.Lookup(ctx, "bookwork:1A")
	require.NoError(t, err)
	assert.False(t, miss.Hit)

	require.NoError(t, s.Remember(ctx, "bookwork:1A", "42"))
	require.NoError(t, s.Remember(ctx, "", "ignored"))
	assert.Equal(t, 1, store.puts)

	hit, err := s.Lookup(ctx, "bookwork:1A")
	require.NoError(t, err)
	assert.Equal(t, solver.Lookup{Hit: true, Answer: "42"}, hit)

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, store.flushes)
}
