package agent

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/game"
	"github.com/victornm/trivia/internal/session"
	"github.com/victornm/trivia/internal/telemetry"
)

// Games is the part of the game service the tools drive.
type Games interface {
	GetGame(ctx context.Context, req session.GameRequest) (*domain.Game, error)
	StartGame(ctx context.Context, req session.GameRequest) (*domain.Game, error)
	NextQuestion(ctx context.Context, req session.GameRequest) (*session.NextQuestionResponse, error)
	SubmitAnswer(ctx context.Context, req session.SubmitAnswerRequest) (*game.Result, error)
	FinishGame(ctx context.Context, req session.GameRequest) (*domain.ScoreReport, error)
	AbortGame(ctx context.Context, req session.GameRequest) error
}

// Dispatcher routes function calls of the voice host to a game.
type Dispatcher struct {
	games Games
}

func NewDispatcher(games Games) *Dispatcher {
	return &Dispatcher{games: games}
}

type handler func(ctx context.Context, gameID string, args map[string]any) (map[string]any, error)

// Call runs the tool named by fc against the game. Failures are reported both in the
// response, so the host can speak them, and as the returned error.
func (d *Dispatcher) Call(ctx context.Context, gameID string, fc *genai.FunctionCall) (*genai.FunctionResponse, error) {
	resp := &genai.FunctionResponse{
		ID:   fc.ID,
		Name: fc.Name,
	}

	out, err := d.call(ctx, gameID, fc)
	if err != nil {
		e := errors.Convert(err)
		telemetry.ToolCalls.WithLabelValues(fc.Name, e.Code.String()).Inc()
		slog.WarnContext(ctx, "agent: tool call failed", "game", gameID, "tool", fc.Name, "error", err)

		resp.Response = map[string]any{
			"error": map[string]any{
				"code":    e.Code.String(),
				"message": e.Message,
			},
		}
		return resp, err
	}

	telemetry.ToolCalls.WithLabelValues(fc.Name, "ok").Inc()
	resp.Response = out
	return resp, nil
}

func (d *Dispatcher) call(ctx context.Context, gameID string, fc *genai.FunctionCall) (map[string]any, error) {
	h, ok := d.handlers()[fc.Name]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("unknown tool: %s", fc.Name))
	}

	if fc.Name != ToolEndCall {
		if err := d.ensureStarted(ctx, gameID); err != nil {
			return nil, err
		}
	}

	return h(ctx, gameID, fc.Args)
}

func (d *Dispatcher) handlers() map[string]handler {
	return map[string]handler{
		ToolGetTriviaQuestion: d.getTriviaQuestion,
		ToolCheckTriviaAnswer: d.checkTriviaAnswer,
		ToolEndGame:           d.endGame,
		ToolEndCall:           d.endCall,
	}
}

// ensureStarted starts a game that is still waiting for its first tool call.
func (d *Dispatcher) ensureStarted(ctx context.Context, gameID string) error {
	g, err := d.games.GetGame(ctx, session.GameRequest{GameID: gameID})
	if err != nil {
		return err
	}

	if g.Progress.Status != domain.StatusNotStarted {
		return nil
	}

	_, err = d.games.StartGame(ctx, session.GameRequest{GameID: gameID})
	if errors.Convert(err).Code == errors.CodeInvalidState {
		// Another call started it first.
		return nil
	}
	return err
}

func (d *Dispatcher) getTriviaQuestion(ctx context.Context, gameID string, _ map[string]any) (map[string]any, error) {
	res, err := d.games.NextQuestion(ctx, session.GameRequest{GameID: gameID})
	if err != nil {
		return nil, err
	}

	q := res.Question
	return map[string]any{
		"question_number": res.Progress.QuestionIndex + 1,
		"total_questions": res.Progress.TotalQuestions,
		"category":        q.Category,
		"difficulty":      string(q.Difficulty),
		"question":        q.Text,
		"options":         q.Options,
	}, nil
}

func (d *Dispatcher) checkTriviaAnswer(ctx context.Context, gameID string, args map[string]any) (map[string]any, error) {
	answer, _ := args["answer"].(string)
	if strings.TrimSpace(answer) == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("answer is required"))
	}

	res, err := d.games.SubmitAnswer(ctx, session.SubmitAnswerRequest{GameID: gameID, Answer: answer})
	if err != nil {
		return nil, err
	}

	p := res.Progress
	return map[string]any{
		"correct":             res.Verdict.Correct,
		"correct_answer":      res.Verdict.CorrectAnswer,
		"explanation":         res.Verdict.Explanation,
		"correct_count":       p.CorrectCount,
		"questions_answered":  p.QuestionIndex,
		"questions_remaining": p.TotalQuestions - p.QuestionIndex,
	}, nil
}

func (d *Dispatcher) endGame(ctx context.Context, gameID string, _ map[string]any) (map[string]any, error) {
	report, err := d.games.FinishGame(ctx, session.GameRequest{GameID: gameID})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"correct_count":   report.CorrectCount,
		"total_questions": report.TotalQuestions,
	}, nil
}

func (d *Dispatcher) endCall(ctx context.Context, gameID string, _ map[string]any) (map[string]any, error) {
	err := d.games.AbortGame(ctx, session.GameRequest{GameID: gameID})
	if errors.Convert(err).Code == errors.CodeInvalidState {
		// The game already ended; hanging up is still fine.
		err = nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{"ended": true}, nil
}
