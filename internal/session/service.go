package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/game"
	"github.com/victornm/trivia/internal/telemetry"
)

const (
	defaultBoard       = "global"
	defaultRetainEnded = 10 * time.Minute
)

// Store persists games and their rounds.
type Store interface {
	InsertGame(ctx context.Context, g domain.Game) error
	UpdateProgress(ctx context.Context, gameID string, p domain.Progress, at time.Time) error
	RecordRound(ctx context.Context, r domain.Round, p domain.Progress) error
	FindGame(ctx context.Context, gameID string) (*domain.Game, error)
}

// GameConfig shapes every game created by the service.
type GameConfig struct {
	TotalQuestions  int
	Schedule        []domain.Difficulty
	UpstreamTimeout time.Duration
}

type Config struct {
	Store       Store
	EventBus    *event.Bus
	Questions   game.QuestionSource
	Checker     game.AnswerChecker
	Game        GameConfig
	RetainEnded time.Duration
}

// Service keeps the live games of this instance and drives their controllers.
type Service struct {
	store     Store
	eb        *event.Bus
	questions game.QuestionSource
	checker   game.AnswerChecker
	gc        GameConfig
	retain    time.Duration

	mu    sync.RWMutex
	games map[string]*entry
}

type entry struct {
	game domain.Game
	ctrl *game.Controller
}

func NewService(c Config) *Service {
	s := &Service{
		store:     c.Store,
		eb:        c.EventBus,
		questions: c.Questions,
		checker:   c.Checker,
		gc:        c.Game,
		retain:    c.RetainEnded,
		games:     make(map[string]*entry),
	}
	if s.retain <= 0 {
		s.retain = defaultRetainEnded
	}

	s.eb.Subscribe(domain.EventNameGameStarted, func(ctx context.Context, e event.Event) error {
		return s.onGameStarted(ctx, e.(domain.EventGameStarted))
	})
	s.eb.Subscribe(domain.EventNameAnswerChecked, func(ctx context.Context, e event.Event) error {
		return s.onAnswerChecked(ctx, e.(domain.EventAnswerChecked))
	})
	s.eb.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return s.onGameEnded(ctx, e.(domain.EventGameEnded))
	})

	return s
}

// CreateGameRequest represents a request to create a new trivia game.
type CreateGameRequest struct {
	// Player is the username of the player.
	Player string
	// Room is the voice room hosting the game, torn down when the game ends. Optional.
	Room string
	// Board is the leaderboard the result counts towards. Defaults to "global".
	Board string
}

// CreateGame registers a new game in the NotStarted state.
func (s *Service) CreateGame(ctx context.Context, req CreateGameRequest) (*domain.Game, error) {
	player := strings.TrimSpace(req.Player)
	if player == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("player is required"))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate game ID: %w", err)
	}

	now := time.Now()
	g := domain.Game{
		GameID:     id.String(),
		Player:     player,
		Room:       req.Room,
		Board:      req.Board,
		CreateTime: now,
		UpdateTime: now,
	}
	if g.Board == "" {
		g.Board = defaultBoard
	}

	ctrl := game.NewController(game.Config{
		GameID:          g.GameID,
		TotalQuestions:  s.gc.TotalQuestions,
		Schedule:        s.gc.Schedule,
		UpstreamTimeout: s.gc.UpstreamTimeout,
		Questions:       s.questions,
		Checker:         s.checker,
		Terminator:      &terminator{s: s, gameID: g.GameID},
		EventBus:        s.eb,
	})
	g.Progress = ctrl.Progress()

	if err := s.store.InsertGame(ctx, g); err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}

	s.mu.Lock()
	s.games[g.GameID] = &entry{game: g, ctrl: ctrl}
	s.mu.Unlock()

	telemetry.GamesCreated.Inc()
	slog.InfoContext(ctx, "session: game created", "game", g.GameID, "player", g.Player, "room", g.Room)

	return &g, nil
}

type GameRequest struct {
	GameID string
}

// GetGame returns a live game, or the persisted record of a game no longer held in memory.
func (s *Service) GetGame(ctx context.Context, req GameRequest) (*domain.Game, error) {
	if e, ok := s.lookup(req.GameID); ok {
		g := e.view()
		return &g, nil
	}

	return s.store.FindGame(ctx, req.GameID)
}

func (s *Service) StartGame(ctx context.Context, req GameRequest) (*domain.Game, error) {
	e, err := s.live(req.GameID)
	if err != nil {
		return nil, err
	}

	if err := e.ctrl.Start(ctx); err != nil {
		return nil, s.fail("start", err)
	}

	g := e.view()
	return &g, nil
}

type NextQuestionResponse struct {
	Question *domain.Question
	Progress domain.Progress
}

// NextQuestion fetches the question for the game's current turn.
func (s *Service) NextQuestion(ctx context.Context, req GameRequest) (*NextQuestionResponse, error) {
	e, err := s.live(req.GameID)
	if err != nil {
		return nil, err
	}

	q, err := e.ctrl.NextQuestion(ctx)
	if err != nil {
		return nil, s.fail("next_question", err)
	}

	return &NextQuestionResponse{
		Question: q,
		Progress: e.ctrl.Progress(),
	}, nil
}

type SubmitAnswerRequest struct {
	GameID string
	Answer string
}

// SubmitAnswer checks the player's answer to the outstanding question.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*game.Result, error) {
	e, err := s.live(req.GameID)
	if err != nil {
		return nil, err
	}

	res, err := e.ctrl.SubmitAnswer(ctx, req.Answer)
	if err != nil {
		return nil, s.fail("submit_answer", err)
	}

	return res, nil
}

// FinishGame completes a fully answered game and returns its score.
func (s *Service) FinishGame(ctx context.Context, req GameRequest) (*domain.ScoreReport, error) {
	e, err := s.live(req.GameID)
	if err != nil {
		return nil, err
	}

	report, err := e.ctrl.Finish(ctx)
	if err != nil && report == nil {
		return nil, s.fail("finish", err)
	}
	if err != nil {
		slog.WarnContext(ctx, "session: game finished but teardown failed", "game", req.GameID, "error", err)
	}

	return report, nil
}

// AbortGame ends a game early, e.g. when the player hangs up.
func (s *Service) AbortGame(ctx context.Context, req GameRequest) error {
	e, err := s.live(req.GameID)
	if err != nil {
		return err
	}

	if err := e.ctrl.Abort(ctx); err != nil {
		return s.fail("abort", err)
	}

	return nil
}

func (s *Service) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.games[id]
	return e, ok
}

func (s *Service) live(id string) (*entry, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game not found: %s", id))
	}

	return e, nil
}

func (s *Service) fail(op string, err error) error {
	telemetry.GameOperationErrors.WithLabelValues(op, errors.Convert(err).Code.String()).Inc()
	return err
}

// evict forgets an ended game after the retention period; later reads go to the store.
func (s *Service) evict(id string) {
	time.AfterFunc(s.retain, func() {
		s.mu.Lock()
		delete(s.games, id)
		s.mu.Unlock()
	})
}

func (s *Service) onGameStarted(ctx context.Context, e domain.EventGameStarted) error {
	en, ok := s.lookup(e.GameID)
	if !ok {
		return nil
	}

	g := en.view()
	return s.store.UpdateProgress(ctx, g.GameID, g.Progress, g.UpdateTime)
}

func (s *Service) onAnswerChecked(ctx context.Context, e domain.EventAnswerChecked) error {
	r := e.Round
	telemetry.AnswersChecked.WithLabelValues(string(r.Difficulty), fmt.Sprint(r.Correct)).Inc()

	return s.store.RecordRound(ctx, r, e.Progress)
}

func (s *Service) onGameEnded(ctx context.Context, e domain.EventGameEnded) error {
	g := e.Game
	telemetry.GamesEnded.WithLabelValues(string(g.Progress.Status)).Inc()

	return s.store.UpdateProgress(ctx, g.GameID, g.Progress, g.UpdateTime)
}

func (e *entry) view() domain.Game {
	g := e.game
	g.Progress = e.ctrl.Progress()
	g.UpdateTime = time.Now()
	return g
}

// terminator ends the conversation hosting a game by announcing the end on the bus.
// Room teardown, scoring and notifications subscribe to it.
type terminator struct {
	s      *Service
	gameID string
}

func (t *terminator) End(ctx context.Context, report *domain.ScoreReport) error {
	e, ok := t.s.lookup(t.gameID)
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("game not found: %s", t.gameID))
	}

	g := e.view()
	slog.InfoContext(ctx, "session: game ended", "game", g.GameID, "status", g.Progress.Status)

	t.s.eb.Publish(ctx, domain.EventGameEnded{
		Game:   g,
		Report: report,
	})
	t.s.evict(g.GameID)

	return nil
}
