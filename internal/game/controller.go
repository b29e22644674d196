package game

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
)

const (
	DefaultTotalQuestions  = 5
	DefaultUpstreamTimeout = 10 * time.Second
)

// QuestionSource fetches a question of the requested difficulty.
type QuestionSource interface {
	Fetch(ctx context.Context, d domain.Difficulty) (*domain.Question, error)
}

// AnswerChecker judges a free-form response to a previously fetched question.
type AnswerChecker interface {
	Check(ctx context.Context, q domain.Question, response string) (domain.Verdict, error)
}

// SessionTerminator tears down the conversation hosting the game.
// The report is nil when the game was aborted.
type SessionTerminator interface {
	End(ctx context.Context, report *domain.ScoreReport) error
}

type Config struct {
	GameID          string
	TotalQuestions  int
	Schedule        []domain.Difficulty
	UpstreamTimeout time.Duration

	Questions  QuestionSource
	Checker    AnswerChecker
	Terminator SessionTerminator
	EventBus   *event.Bus
}

// Controller drives a single game. It is safe for concurrent use, but only one
// question or answer call may be in flight at a time.
type Controller struct {
	id       string
	total    int
	schedule []domain.Difficulty
	timeout  time.Duration

	questions  QuestionSource
	checker    AnswerChecker
	terminator SessionTerminator
	eb         *event.Bus

	mu          sync.Mutex
	status      domain.Status
	index       int
	correct     int
	outstanding *domain.Question
	inflight    context.CancelFunc
}

func NewController(c Config) *Controller {
	ctrl := &Controller{
		id:         c.GameID,
		total:      c.TotalQuestions,
		schedule:   c.Schedule,
		timeout:    c.UpstreamTimeout,
		questions:  c.Questions,
		checker:    c.Checker,
		terminator: c.Terminator,
		eb:         c.EventBus,
		status:     domain.StatusNotStarted,
	}

	if ctrl.total <= 0 {
		ctrl.total = DefaultTotalQuestions
	}
	if len(ctrl.schedule) == 0 {
		ctrl.schedule = DefaultSchedule
	}
	if ctrl.timeout <= 0 {
		ctrl.timeout = DefaultUpstreamTimeout
	}

	return ctrl
}

// Difficulty returns the difficulty asked at the given question index.
// Indices past the end of the schedule reuse its last entry.
func (c *Controller) Difficulty(index int) domain.Difficulty {
	return ScheduleAt(c.schedule, index)
}

// Progress returns a snapshot of the game counters.
func (c *Controller) Progress() domain.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.progress()
}

// Start moves a new game to InProgress.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != domain.StatusNotStarted {
		st := c.status
		c.mu.Unlock()
		return invalidState("start", st)
	}

	c.status = domain.StatusInProgress
	c.index, c.correct = 0, 0
	c.mu.Unlock()

	c.publish(ctx, domain.EventGameStarted{GameID: c.id})
	return nil
}

// NextQuestion fetches the question for the current index. Counters are untouched,
// the question becomes the outstanding one until an answer is submitted.
// Asking again before answering replaces the outstanding question.
func (c *Controller) NextQuestion(ctx context.Context) (*domain.Question, error) {
	c.mu.Lock()
	if c.status != domain.StatusInProgress {
		st := c.status
		c.mu.Unlock()
		return nil, invalidState("next question", st)
	}
	if c.index >= c.total {
		c.mu.Unlock()
		return nil, errors.New(errors.CodeGameComplete,
			errors.WithMessagef("all %d questions have been answered", c.total))
	}
	if c.inflight != nil {
		c.mu.Unlock()
		return nil, inFlight()
	}

	index := c.index
	d := c.Difficulty(index)
	callCtx, cancel := c.begin(ctx)
	c.mu.Unlock()

	q, err := c.questions.Fetch(callCtx, d)

	c.mu.Lock()
	c.finishCall(cancel)
	if c.status != domain.StatusInProgress {
		st := c.status
		c.mu.Unlock()
		return nil, invalidState("next question", st)
	}
	if err == nil && q == nil {
		err = stderrors.New("no question returned")
	}
	if err != nil {
		c.mu.Unlock()
		return nil, upstream("fetch question", err)
	}
	c.outstanding = q
	c.mu.Unlock()

	c.publish(ctx, domain.EventQuestionIssued{
		GameID:        c.id,
		QuestionIndex: index,
		Question:      *q,
	})

	return q, nil
}

// Result of a submitted answer.
type Result struct {
	Verdict  domain.Verdict
	Progress domain.Progress
}

// SubmitAnswer checks the response against the outstanding question and commits the turn.
// Nothing is committed when the checker fails, so the call can be retried.
func (c *Controller) SubmitAnswer(ctx context.Context, response string) (*Result, error) {
	c.mu.Lock()
	if c.status != domain.StatusInProgress {
		st := c.status
		c.mu.Unlock()
		return nil, invalidState("submit answer", st)
	}
	if c.inflight != nil {
		c.mu.Unlock()
		return nil, inFlight()
	}
	if c.outstanding == nil {
		index := c.index
		c.mu.Unlock()
		return nil, errors.New(errors.CodeOutOfSequence,
			errors.WithMessagef("no outstanding question at index %d", index))
	}

	q := *c.outstanding
	index := c.index
	callCtx, cancel := c.begin(ctx)
	c.mu.Unlock()

	v, err := c.checker.Check(callCtx, q, response)

	c.mu.Lock()
	c.finishCall(cancel)
	if c.status != domain.StatusInProgress {
		st := c.status
		c.mu.Unlock()
		return nil, invalidState("submit answer", st)
	}
	if err != nil {
		c.mu.Unlock()
		return nil, upstream("check answer", err)
	}

	if v.Correct {
		c.correct++
	}
	c.index++
	c.outstanding = nil
	p := c.progress()
	c.mu.Unlock()

	c.publish(ctx, domain.EventAnswerChecked{
		Round: domain.Round{
			GameID:        c.id,
			QuestionIndex: index,
			Difficulty:    q.Difficulty,
			QuestionID:    q.QuestionID,
			Correct:       v.Correct,
			AnswerTime:    time.Now(),
		},
		Progress: p,
	})

	return &Result{Verdict: v, Progress: p}, nil
}

// Finish completes a game whose questions have all been answered and signals teardown.
// The report is returned even if teardown fails.
func (c *Controller) Finish(ctx context.Context) (*domain.ScoreReport, error) {
	c.mu.Lock()
	if c.status != domain.StatusInProgress {
		st := c.status
		c.mu.Unlock()
		return nil, invalidState("finish", st)
	}
	if c.index != c.total {
		index := c.index
		c.mu.Unlock()
		return nil, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("cannot finish: %d of %d questions answered", index, c.total))
	}

	c.status = domain.StatusCompleted
	report := &domain.ScoreReport{
		CorrectCount:   c.correct,
		TotalQuestions: c.total,
	}
	c.mu.Unlock()

	if err := c.terminator.End(ctx, report); err != nil {
		slog.ErrorContext(ctx, "game: end session failed", "game", c.id, "error", err)
		return report, errors.Unavailable(err)
	}

	return report, nil
}

// Abort ends a non-terminal game without a score. An in-flight question or answer
// call is cancelled and its result discarded.
func (c *Controller) Abort(ctx context.Context) error {
	c.mu.Lock()
	if c.status.Terminal() {
		st := c.status
		c.mu.Unlock()
		return invalidState("abort", st)
	}

	c.status = domain.StatusAborted
	c.outstanding = nil
	if c.inflight != nil {
		c.inflight()
	}
	c.mu.Unlock()

	if err := c.terminator.End(ctx, nil); err != nil {
		slog.ErrorContext(ctx, "game: end session failed", "game", c.id, "error", err)
		return errors.Unavailable(err)
	}

	return nil
}

// begin must be called with mu held.
func (c *Controller) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.inflight = cancel
	return callCtx, cancel
}

// finishCall must be called with mu held.
func (c *Controller) finishCall(cancel context.CancelFunc) {
	cancel()
	c.inflight = nil
}

func (c *Controller) progress() domain.Progress {
	p := domain.Progress{
		Status:         c.status,
		QuestionIndex:  c.index,
		CorrectCount:   c.correct,
		TotalQuestions: c.total,
	}
	if c.outstanding != nil {
		q := *c.outstanding
		p.Outstanding = &q
	}

	return p
}

func (c *Controller) publish(ctx context.Context, e event.Event) {
	if c.eb == nil {
		return
	}

	c.eb.Publish(ctx, e)
}

func invalidState(op string, st domain.Status) *errors.Error {
	return errors.New(errors.CodeInvalidState, errors.WithMessagef("cannot %s: game is %s", op, st))
}

func inFlight() *errors.Error {
	return errors.New(errors.CodeOutOfSequence, errors.WithMessagef("another call is in flight"))
}

// upstream classifies a collaborator failure. Rejected input and unknown or expired
// questions are reported as is, anything else is retryable.
func upstream(op string, err error) *errors.Error {
	msg := err.Error()
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Code == errors.CodeInvalidArgument || e.Code == errors.CodeNotFound {
			return e
		}
		msg = e.Message
	}

	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("%s: %s", op, msg),
		errors.WithCause(err),
	)
}
