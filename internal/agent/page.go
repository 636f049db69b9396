package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/dreamup/answer-agent/internal/flow"
	"github.com/dreamup/answer-agent/internal/solver"
)

// CaptureMode selects how questions are read from the page
type CaptureMode string

const (
	// CaptureImage screenshots the question element
	CaptureImage CaptureMode = "image"
	// CaptureText reads the question element's inner text
	CaptureText CaptureMode = "text"
)

const pollInterval = 250 * time.Millisecond

// Selectors are the CSS selectors of the quiz page. Only question,
// answer_input and submit are required.
type Selectors struct {
	Question        string `mapstructure:"question" yaml:"question" validate:"required"`
	AnswerInput     string `mapstructure:"answer_input" yaml:"answer_input" validate:"required"`
	Submit          string `mapstructure:"submit" yaml:"submit" validate:"required"`
	Next            string `mapstructure:"next" yaml:"next"`
	BookworkMarker  string `mapstructure:"bookwork_marker" yaml:"bookwork_marker"`
	BookworkCode    string `mapstructure:"bookwork_code" yaml:"bookwork_code"`
	BookworkOption  string `mapstructure:"bookwork_option" yaml:"bookwork_option"`
	BookworkConfirm string `mapstructure:"bookwork_confirm" yaml:"bookwork_confirm"`
	DoneMarker      string `mapstructure:"done_marker" yaml:"done_marker"`
}

// PageConfig configures a Page
type PageConfig struct {
	StartURL    string
	Selectors   Selectors
	CaptureMode CaptureMode
	// WaitTimeout bounds every wait for an element
	WaitTimeout time.Duration
	// ScreenshotDir is where question images are saved; empty uses the temp dir
	ScreenshotDir string
	Logger        *slog.Logger
}

// Page drives the quiz page through chromedp
type Page struct {
	browser *BrowserManager
	cfg     PageConfig
	logger  *slog.Logger
}

// NewPage wraps a running browser
func NewPage(browser *BrowserManager, cfg PageConfig) *Page {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 30 * time.Second
	}
	if cfg.CaptureMode == "" {
		cfg.CaptureMode = CaptureImage
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Page{browser: browser, cfg: cfg, logger: cfg.Logger}
}

var _ flow.Page = (*Page)(nil)

// Open navigates to the start URL and waits for the first question
func (p *Page) Open(ctx context.Context) error {
	p.logger.Info("opening quiz page", "url", p.cfg.StartURL)
	if err := p.browser.NavigateWithTimeout(p.cfg.StartURL, p.cfg.WaitTimeout); err != nil {
		return err
	}
	return p.WaitForQuestion(ctx)
}

// WaitForQuestion polls until the question element is visible or the page
// shows the done marker
func (p *Page) WaitForQuestion(ctx context.Context) error {
	deadline := time.Now().Add(p.cfg.WaitTimeout)
	for {
		if p.cfg.Selectors.DoneMarker != "" {
			done, err := p.exists(p.cfg.Selectors.DoneMarker)
			if err != nil {
				return err
			}
			if done {
				return flow.ErrNoMoreQuestions
			}
		}

		visible, err := p.visible(p.cfg.Selectors.Question)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}

		if time.Now().After(deadline) {
			return NewTimeoutError(fmt.Sprintf("question %q not visible after %v", p.cfg.Selectors.Question, p.cfg.WaitTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// DetectKind reports a bookwork check when the bookwork marker is present
func (p *Page) DetectKind(ctx context.Context) (solver.Kind, error) {
	if p.cfg.Selectors.BookworkMarker == "" {
		return solver.KindNormal, nil
	}
	found, err := p.exists(p.cfg.Selectors.BookworkMarker)
	if err != nil {
		return "", err
	}
	if found {
		return solver.KindBookworkCheck, nil
	}
	return solver.KindNormal, nil
}

// BookworkCode returns the code shown on the page, or "" when there is none
func (p *Page) BookworkCode(ctx context.Context) (string, error) {
	if p.cfg.Selectors.BookworkCode == "" {
		return "", nil
	}
	texts, err := p.innerTexts(p.cfg.Selectors.BookworkCode)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(texts[0]), nil
}

// CaptureQuestion reads the question as text or as a PNG of the question element
func (p *Page) CaptureQuestion(ctx context.Context, kind solver.Kind) (flow.Captured, error) {
	captured := flow.Captured{Question: solver.PendingQuestion{Kind: kind}}
	sel := p.cfg.Selectors.Question

	if p.cfg.CaptureMode == CaptureText {
		texts, err := p.innerTexts(sel)
		if err != nil {
			return captured, err
		}
		if len(texts) == 0 || strings.TrimSpace(texts[0]) == "" {
			return captured, NewBrowserError(fmt.Sprintf("question %q has no text", sel), nil)
		}
		captured.Question.Text = strings.TrimSpace(texts[0])
		return captured, nil
	}

	var buf []byte
	if err := p.browser.Run(p.cfg.WaitTimeout,
		chromedp.Screenshot(sel, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	); err != nil {
		return captured, NewBrowserError("failed to capture question screenshot", err)
	}

	shot := NewScreenshot(buf)
	if err := shot.SaveTo(p.cfg.ScreenshotDir); err != nil {
		p.logger.Warn("could not save question screenshot", "error", err)
	}
	captured.Question.Image = shot.Data
	captured.ScreenshotPath = shot.Filepath
	return captured, nil
}

// Options returns the label of every bookwork option in page order
func (p *Page) Options(ctx context.Context) ([]string, error) {
	if p.cfg.Selectors.BookworkOption == "" {
		return nil, NewBrowserError("no bookwork_option selector configured", nil)
	}
	texts, err := p.innerTexts(p.cfg.Selectors.BookworkOption)
	if err != nil {
		return nil, err
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// SelectOption clicks the option at index and then the confirm button, if any
func (p *Page) SelectOption(ctx context.Context, index int) error {
	var nodes []*cdp.Node
	if err := p.browser.Run(p.cfg.WaitTimeout,
		chromedp.Nodes(p.cfg.Selectors.BookworkOption, &nodes, chromedp.ByQueryAll),
	); err != nil {
		return NewBrowserError("failed to query bookwork options", err)
	}
	if index < 0 || index >= len(nodes) {
		return NewBrowserError(fmt.Sprintf("option %d out of range, page has %d", index, len(nodes)), nil)
	}

	if err := p.browser.Run(p.cfg.WaitTimeout, chromedp.MouseClickNode(nodes[index])); err != nil {
		return NewBrowserError(fmt.Sprintf("failed to click option %d", index), err)
	}

	if p.cfg.Selectors.BookworkConfirm != "" {
		return p.click(p.cfg.Selectors.BookworkConfirm)
	}
	return nil
}

// SubmitAnswer clears the answer input, types the answer and submits it
func (p *Page) SubmitAnswer(ctx context.Context, answer string) error {
	sel := p.cfg.Selectors.AnswerInput
	if err := p.browser.Run(p.cfg.WaitTimeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, answer, chromedp.ByQuery),
	); err != nil {
		return NewBrowserError(fmt.Sprintf("failed to type into %s", sel), err)
	}
	return p.click(p.cfg.Selectors.Submit)
}

// Advance clicks the next button. It returns flow.ErrNoMoreQuestions when
// the done marker is shown or there is no next button.
func (p *Page) Advance(ctx context.Context) error {
	if p.cfg.Selectors.DoneMarker != "" {
		done, err := p.exists(p.cfg.Selectors.DoneMarker)
		if err != nil {
			return err
		}
		if done {
			return flow.ErrNoMoreQuestions
		}
	}
	if p.cfg.Selectors.Next == "" {
		return nil
	}

	found, err := p.exists(p.cfg.Selectors.Next)
	if err != nil {
		return err
	}
	if !found {
		return flow.ErrNoMoreQuestions
	}
	return p.click(p.cfg.Selectors.Next)
}

// Reload refreshes the page
func (p *Page) Reload(ctx context.Context) error {
	return p.browser.Reload(p.cfg.WaitTimeout)
}

// Close shuts the browser down
func (p *Page) Close() error {
	p.browser.Close()
	return nil
}

func (p *Page) click(sel string) error {
	err := p.browser.Run(p.cfg.WaitTimeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		var cerr *CategorizedError
		if errors.As(err, &cerr) {
			return err
		}
		return NewBrowserError(fmt.Sprintf("failed to click %s", sel), err)
	}
	return nil
}

// exists reports whether sel matches anything, without waiting
func (p *Page) exists(sel string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(sel))
	if err := p.browser.Run(p.cfg.WaitTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, NewBrowserError(fmt.Sprintf("failed to query %s", sel), err)
	}
	return found, nil
}

// visible reports whether sel matches a rendered element, without waiting
func (p *Page) visible(sel string) (bool, error) {
	var shown bool
	script := fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	return el !== null && el.offsetParent !== null;
})()`, jsString(sel))
	if err := p.browser.Run(p.cfg.WaitTimeout, chromedp.Evaluate(script, &shown)); err != nil {
		return false, NewBrowserError(fmt.Sprintf("failed to query %s", sel), err)
	}
	return shown, nil
}

// innerTexts returns the inner text of every element matching sel
func (p *Page) innerTexts(sel string) ([]string, error) {
	var texts []string
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(el => el.innerText || '')`, jsString(sel))
	if err := p.browser.Run(p.cfg.WaitTimeout, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, NewBrowserError(fmt.Sprintf("failed to read text of %s", sel), err)
	}
	return texts, nil
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
