package agent_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/victornm/trivia/internal/agent"
	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/game"
	"github.com/victornm/trivia/internal/session"
)

func TestDeclarations(t *testing.T) {
	var names []string
	for _, d := range agent.Declarations() {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{"get_trivia_question", "check_trivia_answer", "end_game", "end_call"}, names)
	assert.Equal(t, []string{"answer"}, agent.Declarations()[1].Parameters.Required)
}

func TestLiveConfig_ConnectConfig(t *testing.T) {
	c := agent.LiveConfig{TotalQuestions: 5}.ConnectConfig()

	assert.Equal(t, []genai.Modality{genai.ModalityAudio}, c.ResponseModalities)
	assert.Equal(t, "Puck", c.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.NotNil(t, c.Temperature)
	assert.InDelta(t, 0.7, *c.Temperature, 1e-6)
	require.Len(t, c.Tools, 1)
	assert.Len(t, c.Tools[0].FunctionDeclarations, 4)
	require.NotNil(t, c.SystemInstruction)
	assert.Contains(t, c.SystemInstruction.Parts[0].Text, "exactly 5 questions")
	assert.Contains(t, c.SystemInstruction.Parts[0].Text, "Questions 1 to 4 are medium, question 5 is hard.")

	assert.Equal(t, agent.DefaultModel, agent.LiveConfig{}.ModelName())
}

func TestInstructions_Schedule(t *testing.T) {
	tests := map[string]struct {
		total    int
		schedule []domain.Difficulty
		want     string
	}{
		"last entry repeats": {
			total:    4,
			schedule: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyHard},
			want:     "Question 1 is easy, questions 2 to 4 are hard.",
		},
		"single question": {
			total:    1,
			schedule: []domain.Difficulty{domain.DifficultyMedium},
			want:     "Question 1 is medium.",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, agent.Instructions(tt.total, tt.schedule), tt.want)
		})
	}
}

func TestDispatcher_PlayByVoice(t *testing.T) {
	var (
		ctx   = context.Background()
		games = newFakeGames()
		d     = agent.NewDispatcher(games)
	)

	call := func(name string, args map[string]any) *genai.FunctionResponse {
		t.Helper()
		resp, err := d.Call(ctx, "g1", &genai.FunctionCall{ID: name, Name: name, Args: args})
		require.NoError(t, err)
		assert.Equal(t, name, resp.ID)
		return resp
	}

	for i, a := range []string{"right", "right", "wrong", "right", "right"} {
		q := call(agent.ToolGetTriviaQuestion, nil)
		assert.Equal(t, i+1, q.Response["question_number"])
		assert.Equal(t, []string{"right", "wrong"}, q.Response["options"])

		v := call(agent.ToolCheckTriviaAnswer, map[string]any{"answer": a})
		assert.Equal(t, a == "right", v.Response["correct"])
		assert.Equal(t, 4-i, v.Response["questions_remaining"])
	}

	end := call(agent.ToolEndGame, nil)
	assert.Equal(t, map[string]any{"correct_count": 4, "total_questions": 5}, end.Response)

	// Hanging up after the game ended is fine.
	call(agent.ToolEndCall, nil)
	assert.Equal(t, 1, games.term.ends)
}

func TestDispatcher_Errors(t *testing.T) {
	tests := map[string]struct {
		call   *genai.FunctionCall
		assert func(t *testing.T, games *fakeGames, resp *genai.FunctionResponse, err error)
	}{
		"unknown tool": {
			call: &genai.FunctionCall{Name: "dance"},
			assert: func(t *testing.T, _ *fakeGames, resp *genai.FunctionResponse, err error) {
				require.ErrorIs(t, err, errors.ErrNotFound)
				assert.Contains(t, resp.Response, "error")
			},
		},
		"answer before question": {
			call: &genai.FunctionCall{Name: agent.ToolCheckTriviaAnswer, Args: map[string]any{"answer": "right"}},
			assert: func(t *testing.T, games *fakeGames, resp *genai.FunctionResponse, err error) {
				require.ErrorIs(t, err, errors.ErrOutOfSequence)
				assert.Equal(t, map[string]any{
					"error": map[string]any{"code": "Aborted", "message": "no outstanding question at index 0"},
				}, resp.Response)
				assert.Equal(t, domain.StatusInProgress, games.ctrl.Progress().Status, "first tool call should start the game")
			},
		},
		"missing answer": {
			call: &genai.FunctionCall{Name: agent.ToolCheckTriviaAnswer},
			assert: func(t *testing.T, _ *fakeGames, resp *genai.FunctionResponse, err error) {
				require.Error(t, err)
				assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
			},
		},
		"end game too early": {
			call: &genai.FunctionCall{Name: agent.ToolEndGame},
			assert: func(t *testing.T, _ *fakeGames, resp *genai.FunctionResponse, err error) {
				require.ErrorIs(t, err, errors.ErrInvalidState)
			},
		},
		"end call aborts without starting": {
			call: &genai.FunctionCall{Name: agent.ToolEndCall},
			assert: func(t *testing.T, games *fakeGames, resp *genai.FunctionResponse, err error) {
				require.NoError(t, err)
				assert.Equal(t, map[string]any{"ended": true}, resp.Response)
				assert.Equal(t, domain.StatusAborted, games.ctrl.Progress().Status)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			games := newFakeGames()
			resp, err := agent.NewDispatcher(games).Call(context.Background(), "g1", tt.call)
			require.NotNil(t, resp)
			tt.assert(t, games, resp, err)
		})
	}
}

// fakeGames serves a single game backed by a real controller.
type fakeGames struct {
	ctrl *game.Controller
	term *fakeTerminator
}

func newFakeGames() *fakeGames {
	term := &fakeTerminator{}
	return &fakeGames{
		term: term,
		ctrl: game.NewController(game.Config{
			GameID:     "g1",
			Questions:  &fakeSource{},
			Checker:    fakeChecker{},
			Terminator: term,
			EventBus:   event.NewBus(),
		}),
	}
}

func (f *fakeGames) GetGame(_ context.Context, req session.GameRequest) (*domain.Game, error) {
	if req.GameID != "g1" {
		return nil, errors.New(errors.CodeNotFound)
	}
	return &domain.Game{GameID: req.GameID, Progress: f.ctrl.Progress()}, nil
}

func (f *fakeGames) StartGame(ctx context.Context, req session.GameRequest) (*domain.Game, error) {
	if err := f.ctrl.Start(ctx); err != nil {
		return nil, err
	}
	return f.GetGame(ctx, req)
}

func (f *fakeGames) NextQuestion(ctx context.Context, _ session.GameRequest) (*session.NextQuestionResponse, error) {
	q, err := f.ctrl.NextQuestion(ctx)
	if err != nil {
		return nil, err
	}
	return &session.NextQuestionResponse{Question: q, Progress: f.ctrl.Progress()}, nil
}

func (f *fakeGames) SubmitAnswer(ctx context.Context, req session.SubmitAnswerRequest) (*game.Result, error) {
	return f.ctrl.SubmitAnswer(ctx, req.Answer)
}

func (f *fakeGames) FinishGame(ctx context.Context, _ session.GameRequest) (*domain.ScoreReport, error) {
	return f.ctrl.Finish(ctx)
}

func (f *fakeGames) AbortGame(ctx context.Context, _ session.GameRequest) error {
	return f.ctrl.Abort(ctx)
}

type fakeSource struct {
	n int
}

func (s *fakeSource) Fetch(_ context.Context, d domain.Difficulty) (*domain.Question, error) {
	s.n++
	return &domain.Question{
		QuestionID: fmt.Sprintf("q%d", s.n),
		Difficulty: d,
		Text:       "Pick right",
		Options:    []string{"right", "wrong"},
	}, nil
}

type fakeChecker struct{}

func (fakeChecker) Check(_ context.Context, _ domain.Question, response string) (domain.Verdict, error) {
	return domain.Verdict{Correct: response == "right", CorrectAnswer: "right"}, nil
}

type fakeTerminator struct {
	ends int
}

func (f *fakeTerminator) End(context.Context, *domain.ScoreReport) error {
	f.ends++
	return nil
}
