package score_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/score"
)

func TestAccuracy(t *testing.T) {
	tests := map[string]struct {
		report domain.ScoreReport
		want   string
	}{
		"all correct":   {report: domain.ScoreReport{CorrectCount: 5, TotalQuestions: 5}, want: "1"},
		"four of five":  {report: domain.ScoreReport{CorrectCount: 4, TotalQuestions: 5}, want: "0.8"},
		"rounded":       {report: domain.ScoreReport{CorrectCount: 2, TotalQuestions: 3}, want: "0.67"},
		"none answered": {report: domain.ScoreReport{}, want: "0"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, score.Accuracy(tt.report).String())
		})
	}
}

func TestService_RecordScore(t *testing.T) {
	type (
		inputs struct {
			store *memStore
			req   score.RecordScoreRequest
		}

		outputs struct {
			score     *domain.Score
			err       error
			published []domain.EventScoreUpdated
		}
	)

	game := domain.Game{GameID: "g1", Player: "alice", Board: "global"}

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should record the score and publish the running total": {
			arrange: func() inputs {
				st := newMemStore()
				st.scores = append(st.scores, domain.Score{GameID: "g0", Player: "alice", Board: "global", CorrectCount: 3})
				return inputs{
					store: st,
					req:   score.RecordScoreRequest{Game: game, Report: domain.ScoreReport{CorrectCount: 4, TotalQuestions: 5}},
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, "7", out.score.TotalScore.String())
				assert.Equal(t, "0.8", out.score.Accuracy.String())
				require.Len(t, out.published, 1)
				assert.Equal(t, *out.score, out.published[0].Score)
			},
		},

		"should reject a game recorded twice": {
			arrange: func() inputs {
				st := newMemStore()
				st.scores = append(st.scores, domain.Score{GameID: "g1", Player: "alice", Board: "global", CorrectCount: 4})
				return inputs{
					store: st,
					req:   score.RecordScoreRequest{Game: game, Report: domain.ScoreReport{CorrectCount: 4, TotalQuestions: 5}},
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.Equal(t, errors.CodeAlreadyExists, errors.Convert(out.err).Code)
				assert.Empty(t, out.published)
			},
		},

		"should reject an empty report": {
			arrange: func() inputs {
				return inputs{store: newMemStore(), req: score.RecordScoreRequest{Game: game}}
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(out.err).Code)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()
			var mu sync.Mutex
			eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.published = append(out.published, e.(domain.EventScoreUpdated))
				mu.Unlock()
				return nil
			})

			s := score.NewService(score.Config{EventBus: eb, Store: in.store})
			out.score, out.err = s.RecordScore(context.Background(), in.req)

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_RecordsCompletedGamesOnly(t *testing.T) {
	eb := event.NewBus()
	st := newMemStore()
	_ = score.NewService(score.Config{EventBus: eb, Store: st})

	ctx := context.Background()
	eb.Publish(ctx, domain.EventGameEnded{
		Game:   domain.Game{GameID: "g1", Player: "alice", Board: "global"},
		Report: &domain.ScoreReport{CorrectCount: 2, TotalQuestions: 5},
	})
	eb.Publish(ctx, domain.EventGameEnded{
		Game: domain.Game{GameID: "g2", Player: "alice", Board: "global"},
	})
	eb.Stop()

	scores, err := st.ListScores(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "g1", scores[0].GameID)
	assert.Equal(t, "0.4", scores[0].Accuracy.String())
}

type memStore struct {
	mu     sync.Mutex
	scores []domain.Score
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) InsertScore(_ context.Context, sc domain.Score) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.NewFromInt(int64(sc.CorrectCount))
	for _, s := range m.scores {
		if s.GameID == sc.GameID {
			return decimal.Zero, errors.New(errors.CodeAlreadyExists)
		}
		if s.Player == sc.Player && s.Board == sc.Board {
			total = total.Add(decimal.NewFromInt(int64(s.CorrectCount)))
		}
	}

	m.scores = append(m.scores, sc)
	return total, nil
}

func (m *memStore) ListScores(_ context.Context, player string) ([]domain.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []domain.Score
	for i := len(m.scores) - 1; i >= 0; i-- {
		if m.scores[i].Player == player {
			res = append(res, m.scores[i])
		}
	}
	return res, nil
}
