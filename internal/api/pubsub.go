package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/trivia/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		Board   string             `json:"board"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Player string `json:"player"`
		Score  string `json:"score"`
	}

	GameEnded struct {
		GameID         string `json:"game_id"`
		Player         string `json:"player"`
		Status         string `json:"status"`
		CorrectCount   int    `json:"correct_count"`
		TotalQuestions int    `json:"total_questions"`
	}
)

// PublishGameEnded notifies the game's watchers and its player.
func (a *API) PublishGameEnded(ctx context.Context, e domain.EventGameEnded) error {
	g := e.Game
	data := GameEnded{
		GameID:         g.GameID,
		Player:         g.Player,
		Status:         string(g.Progress.Status),
		CorrectCount:   g.Progress.CorrectCount,
		TotalQuestions: g.Progress.TotalQuestions,
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return a.publishNotification(ctx, a.gameChannel(g.GameID), e.Name(), data)
	})
	eg.Go(func() error {
		return a.publishNotification(ctx, a.userChannel(g.Player), e.Name(), data)
	})

	return eg.Wait()
}

// PublishLeaderboardUpdated sends the new standings to every player on the board.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		Board:   l.Board,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Player: entry.Player,
			Score:  strconv.FormatFloat(entry.Score, 'f', -1, 64),
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.Player), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) gameChannel(gameID string) string {
	return fmt.Sprintf("%s:game:%s", a.prefix, gameID)
}

func (a *API) userChannel(player string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, player)
}
