package score

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
)

// Store persists recorded scores.
type Store interface {
	// InsertScore records a game result and returns the player's total on the board, including it.
	// Recording the same game twice fails with CodeAlreadyExists.
	InsertScore(ctx context.Context, sc domain.Score) (decimal.Decimal, error)
	ListScores(ctx context.Context, player string) ([]domain.Score, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
}

type Service struct {
	eb    *event.Bus
	store Store
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		store: c.Store,
	}

	s.eb.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		ge := e.(domain.EventGameEnded)
		if ge.Report == nil {
			return nil
		}

		_, err := s.RecordScore(ctx, RecordScoreRequest{
			Game:   ge.Game,
			Report: *ge.Report,
		})
		return err
	})

	return s
}

type RecordScoreRequest struct {
	Game   domain.Game
	Report domain.ScoreReport
}

// RecordScore stores the result of a completed game and publishes the player's new total.
func (s *Service) RecordScore(ctx context.Context, req RecordScoreRequest) (*domain.Score, error) {
	if req.Report.TotalQuestions <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("score report has no questions"))
	}

	sc := domain.Score{
		GameID:         req.Game.GameID,
		Player:         req.Game.Player,
		Board:          req.Game.Board,
		CorrectCount:   req.Report.CorrectCount,
		TotalQuestions: req.Report.TotalQuestions,
		Accuracy:       Accuracy(req.Report),
		UpdateTime:     time.Now(),
	}

	total, err := s.store.InsertScore(ctx, sc)
	if err != nil {
		if e := errors.Convert(err); e.Code == errors.CodeAlreadyExists {
			return nil, errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("score is already recorded: game=%s", sc.GameID),
				errors.WithCause(e.Unwrap()),
			)
		}
		return nil, err
	}
	sc.TotalScore = total

	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: sc,
	})

	return &sc, nil
}

type ListScoresRequest struct {
	Player string
}

// ListScores returns the recorded games of a player, most recent first.
func (s *Service) ListScores(ctx context.Context, req ListScoresRequest) ([]domain.Score, error) {
	return s.store.ListScores(ctx, req.Player)
}

// Accuracy is the share of correct answers, rounded to two decimal places.
func Accuracy(r domain.ScoreReport) decimal.Decimal {
	if r.TotalQuestions == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(r.CorrectCount)).
		Div(decimal.NewFromInt(int64(r.TotalQuestions))).
		Round(2)
}
