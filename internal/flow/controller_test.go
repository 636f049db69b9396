package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dreamup/answer-agent/internal/flow"
	mock_flow "github.com/dreamup/answer-agent/internal/mocks/flow"
	mock_solver "github.com/dreamup/answer-agent/internal/mocks/solver"
	"github.com/dreamup/answer-agent/internal/reporter"
	"github.com/dreamup/answer-agent/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type countingStore struct {
	mu      sync.Mutex
	data    map[string]string
	flushes int
}

func newCountingStore(seed map[string]string) *countingStore {
	data := map[string]string{}
	for k, v := range seed {
		data[k] = v
	}
	return &countingStore{data: data}
}

func (s *countingStore) Get(_ context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	return a, ok, nil
}

func (s *countingStore) Put(_ context.Context, id, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = answer
	return nil
}

func (s *countingStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

type fixture struct {
	page      *mock_flow.MockPage
	completer *mock_solver.MockCompleter
	store     *countingStore
	report    *reporter.ReportBuilder
}

func newFixture(t *testing.T, seed map[string]string) (*fixture, func(flow.Options) *flow.Controller) {
	ctrl := gomock.NewController(t)
	f := &fixture{
		page:      mock_flow.NewMockPage(ctrl),
		completer: mock_solver.NewMockCompleter(ctrl),
		store:     newCountingStore(seed),
		report:    reporter.NewReportBuilder("https://quiz.example.com"),
	}
	build := func(opts flow.Options) *flow.Controller {
		opts.Report = f.report
		return flow.New(f.page, solver.New(f.store, f.completer, nil), opts)
	}
	return f, build
}

func textQuestion(text string) flow.Captured {
	return flow.Captured{Question: solver.PendingQuestion{Kind: solver.KindNormal, Text: text}}
}

func TestController_NormalQuestionThenFinished(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{})

	gomock.InOrder(
		f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
		f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindNormal, nil),
		f.page.EXPECT().CaptureQuestion(gomock.Any(), solver.KindNormal).Return(textQuestion("2+2"), nil),
		f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("Answer: 4", nil),
		f.page.EXPECT().BookworkCode(gomock.Any()).Return("1A", nil),
		f.page.EXPECT().SubmitAnswer(gomock.Any(), "4").Return(nil),
		f.page.EXPECT().Advance(gomock.Any()).Return(flow.ErrNoMoreQuestions),
		f.page.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, flow.StateStopped, c.State())
	assert.Equal(t, "4", f.store.data["2+2"])
	assert.Equal(t, "4", f.store.data["bookwork:1A"])
	assert.Equal(t, 1, f.store.flushes)

	summary := f.report.Summary()
	assert.Equal(t, reporter.StopFinished, summary.StopReason)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Computed)
}

func TestController_RepeatedQuestionUsesCache(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{MaxIterations: 2})

	f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil).Times(2)
	f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindNormal, nil).Times(2)
	f.page.EXPECT().CaptureQuestion(gomock.Any(), solver.KindNormal).Return(textQuestion("2+2"), nil).Times(2)
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("4", nil).Times(1)
	f.page.EXPECT().BookworkCode(gomock.Any()).Return("", nil).Times(2)
	f.page.EXPECT().SubmitAnswer(gomock.Any(), "4").Return(nil).Times(2)
	f.page.EXPECT().Advance(gomock.Any()).Return(nil).Times(2)
	f.page.EXPECT().Close().Return(nil)

	require.NoError(t, c.Run(context.Background()))

	summary := f.report.Summary()
	assert.Equal(t, reporter.StopMaxIterations, summary.StopReason)
	assert.Equal(t, 1, summary.Computed)
	assert.Equal(t, 1, summary.CacheHits)
}

func TestController_BookworkCheck(t *testing.T) {
	t.Run("stored code selects matching option", func(t *testing.T) {
		f, build := newFixture(t, map[string]string{"bookwork:1A": "3.5"})
		c := build(flow.Options{MaxIterations: 1})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
			f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindBookworkCheck, nil),
			f.page.EXPECT().BookworkCode(gomock.Any()).Return("1A", nil),
			f.page.EXPECT().Options(gomock.Any()).Return([]string{"2,5 cm", "3,5 cm", "4"}, nil),
			f.page.EXPECT().SelectOption(gomock.Any(), 1).Return(nil),
			f.page.EXPECT().Close().Return(nil),
		)

		require.NoError(t, c.Run(context.Background()))

		report := f.report.Build()
		require.Len(t, report.Entries, 1)
		assert.Equal(t, solver.SourceCache, report.Entries[0].Source)
		assert.True(t, report.Entries[0].OptionMatched)
		assert.Equal(t, 1, report.Summary.BookworkChecks)
	})

	t.Run("unmatched answer falls back to first option", func(t *testing.T) {
		f, build := newFixture(t, nil)

		captured := flow.Captured{
			Question:       solver.PendingQuestion{Kind: solver.KindBookworkCheck, Image: []byte("png")},
			ScreenshotPath: "/tmp/question.png",
		}
		var published []flow.Captured
		c := build(flow.Options{
			MaxIterations: 1,
			OnCapture:     func(got flow.Captured) { published = append(published, got) },
		})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
			f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindBookworkCheck, nil),
			f.page.EXPECT().BookworkCode(gomock.Any()).Return("2C", nil),
			f.page.EXPECT().CaptureQuestion(gomock.Any(), solver.KindBookworkCheck).Return(captured, nil),
			f.completer.EXPECT().Complete(gomock.Any(), captured.Question).Return("99", nil),
			f.page.EXPECT().Options(gomock.Any()).Return([]string{"1", "2"}, nil),
			f.page.EXPECT().SelectOption(gomock.Any(), 0).Return(nil),
			f.page.EXPECT().Close().Return(nil),
		)

		require.NoError(t, c.Run(context.Background()))

		require.Len(t, published, 1)
		assert.Equal(t, "/tmp/question.png", published[0].ScreenshotPath)
		report := f.report.Build()
		require.Len(t, report.Entries, 1)
		assert.False(t, report.Entries[0].OptionMatched)
		assert.Equal(t, 0, report.Entries[0].OptionIndex)
	})
}

func TestController_CompleterFailureSubmitsFallback(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{MaxIterations: 1})

	gomock.InOrder(
		f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
		f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindNormal, nil),
		f.page.EXPECT().CaptureQuestion(gomock.Any(), solver.KindNormal).Return(textQuestion("hard"), nil),
		f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("500 from API")),
		f.page.EXPECT().BookworkCode(gomock.Any()).Return("", nil),
		f.page.EXPECT().SubmitAnswer(gomock.Any(), "0").Return(nil),
		f.page.EXPECT().Advance(gomock.Any()).Return(nil),
		f.page.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "0", f.store.data["hard"])
	assert.Equal(t, 1, f.report.Summary().Fallbacks)
}

func TestController_StopDuringIteration(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{})

	f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil).Times(1)
	f.page.EXPECT().DetectKind(gomock.Any()).Return(solver.KindNormal, nil)
	f.page.EXPECT().CaptureQuestion(gomock.Any(), solver.KindNormal).Return(textQuestion("5*5"), nil)
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("25", nil)
	f.page.EXPECT().BookworkCode(gomock.Any()).Return("", nil)
	f.page.EXPECT().SubmitAnswer(gomock.Any(), "25").DoAndReturn(func(context.Context, string) error {
		c.Stop()
		return nil
	})
	f.page.EXPECT().Advance(gomock.Any()).Return(nil)
	f.page.EXPECT().Close().Return(nil)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, f.store.flushes)
	assert.Equal(t, reporter.StopRequested, f.report.Summary().StopReason)
}

func TestController_StopBeforeRun(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{})

	f.page.EXPECT().Close().Return(nil)

	c.Stop()
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, f.store.flushes)
	assert.Equal(t, reporter.StopRequested, f.report.Summary().StopReason)
}

func TestController_Recovery(t *testing.T) {
	t.Run("recovered failure continues", func(t *testing.T) {
		f, build := newFixture(t, nil)
		c := build(flow.Options{})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(errors.New("element not found")),
			f.page.EXPECT().Reload(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(flow.ErrNoMoreQuestions),
			f.page.EXPECT().Close().Return(nil),
		)

		require.NoError(t, c.Run(context.Background()))

		summary := f.report.Summary()
		assert.Equal(t, 1, summary.Recoveries)
		assert.Equal(t, 1, summary.Failures)
		assert.Equal(t, reporter.StopFinished, summary.StopReason)
	})

	t.Run("failed reload stops the loop", func(t *testing.T) {
		f, build := newFixture(t, nil)
		c := build(flow.Options{})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(errors.New("navigation failed")),
			f.page.EXPECT().Reload(gomock.Any()).Return(errors.New("net::ERR_INTERNET_DISCONNECTED")),
			f.page.EXPECT().Close().Return(nil),
		)

		err := c.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "navigation failed")
		assert.Equal(t, 1, f.store.flushes)
		assert.Equal(t, "aborted", f.report.Summary().Status)
	})

	t.Run("consecutive failures stop the loop", func(t *testing.T) {
		f, build := newFixture(t, nil)
		c := build(flow.Options{MaxConsecutiveFailures: 2})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(errors.New("timeout")),
			f.page.EXPECT().Reload(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(errors.New("timeout")),
			f.page.EXPECT().Close().Return(nil),
		)

		err := c.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, reporter.StopTooManyFailures, f.report.Summary().StopReason)
	})

	t.Run("bound of one still recovers once", func(t *testing.T) {
		f, build := newFixture(t, nil)
		c := build(flow.Options{MaxConsecutiveFailures: 1})

		gomock.InOrder(
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(errors.New("timeout")),
			f.page.EXPECT().Reload(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(nil),
			f.page.EXPECT().WaitForQuestion(gomock.Any()).Return(flow.ErrNoMoreQuestions),
			f.page.EXPECT().Close().Return(nil),
		)

		require.NoError(t, c.Run(context.Background()))
		summary := f.report.Summary()
		assert.Equal(t, 1, summary.Recoveries)
		assert.Equal(t, reporter.StopFinished, summary.StopReason)
	})
}

func TestController_RejectsReentrantRun(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{})

	var innerErr error
	f.page.EXPECT().WaitForQuestion(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		assert.Equal(t, flow.StateRunning, c.State())
		innerErr = c.Run(ctx)
		return flow.ErrNoMoreQuestions
	})
	f.page.EXPECT().Close().Return(nil)

	require.NoError(t, c.Run(context.Background()))
	assert.ErrorIs(t, innerErr, flow.ErrAlreadyRunning)
}

func TestController_CancelledContext(t *testing.T) {
	f, build := newFixture(t, nil)
	c := build(flow.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.page.EXPECT().Close().Return(nil)

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.store.flushes)
}
