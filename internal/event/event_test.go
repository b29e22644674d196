package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	var (
		started = domain.EventGameStarted{GameID: "g1"}
		checked = domain.EventAnswerChecked{Round: domain.Round{GameID: "g1", QuestionIndex: 0, Correct: true}}
		ended   = domain.EventGameEnded{Game: domain.Game{GameID: "g1"}, Report: &domain.ScoreReport{CorrectCount: 1, TotalQuestions: 5}}
		scored  = domain.EventScoreUpdated{Score: domain.Score{GameID: "g1", Player: "alice"}}
	)

	type (
		inputs struct {
			published   []event.Event
			subscribers map[string][]string
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber should only receive the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, ended},
					subscribers: map[string][]string{
						"room": {domain.EventNameGameEnded},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{ended}, out.received["room"])
			},
		},

		"a subscriber should receive every published event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{checked, checked, checked},
					subscribers: map[string][]string{
						"session": {domain.EventNameAnswerChecked},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{checked, checked, checked}, out.received["session"])
			},
		},

		"game.ended should reach every component subscribed to it": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{ended},
					subscribers: map[string][]string{
						"session":       {domain.EventNameGameEnded},
						"score":         {domain.EventNameGameEnded},
						"room":          {domain.EventNameGameEnded},
						"notifications": {domain.EventNameGameEnded},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				for _, s := range []string{"session", "score", "room", "notifications"} {
					assert.ElementsMatch(t, []event.Event{ended}, out.received[s], s)
				}
			},
		},

		"a game's events should be dispatched to the matching subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{started, checked, checked, ended, scored},
					subscribers: map[string][]string{
						"session":     {domain.EventNameGameStarted, domain.EventNameAnswerChecked, domain.EventNameGameEnded},
						"score":       {domain.EventNameGameEnded},
						"leaderboard": {domain.EventNameScoreUpdated},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{started, checked, checked, ended}, out.received["session"])
				assert.ElementsMatch(t, []event.Event{ended}, out.received["score"])
				assert.ElementsMatch(t, []event.Event{scored}, out.received["leaderboard"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for s, names := range in.subscribers {
				for _, n := range names {
					b.Subscribe(n, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s] = append(out.received[s], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}


func TestBus_HandlerFailuresDoNotStopOthers(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(2))

	var calls atomic.Int32
	b.Subscribe("game.ended", func(ctx context.Context, e event.Event) error {
		panic("boom")
	})
	b.Subscribe("game.ended", func(ctx context.Context, e event.Event) error {
		return errors.New("failed")
	})
	b.Subscribe("game.ended", func(ctx context.Context, e event.Event) error {
		calls.Add(1)
		return nil
	})

	for range 5 {
		b.Publish(context.Background(), eventWithName("game.ended"))
	}
	b.Stop()

	require.EqualValues(t, 5, calls.Load())
}

func TestBus_HandlerContext(t *testing.T) {
	b := event.NewBus(event.WithTimeout(50 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	b.Subscribe("e1", func(ctx context.Context, e event.Event) error {
		<-ctx.Done()
		done <- ctx.Err()
		return nil
	})

	b.Publish(ctx, eventWithName("e1"))
	cancel()
	b.Stop()

	require.ErrorIs(t, <-done, context.DeadlineExceeded, "handler should outlive the publisher context and stop at its own timeout")
}
