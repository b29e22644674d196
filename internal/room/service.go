// Package room manages the LiveKit room hosting a game: it signs participant tokens
// and tears the room down once the game ends.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/event"
)

// RoomService is the subset of the LiveKit room API used here.
type RoomService interface {
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

type LiveKitConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether all credentials are set.
func (c LiveKitConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != "" && c.APISecret != ""
}

// NewRoomService returns a LiveKit room client, or nil when the credentials are incomplete.
func NewRoomService(c LiveKitConfig) RoomService {
	if !c.Enabled() {
		return nil
	}

	return lksdk.NewRoomServiceClient(c.URL, c.APIKey, c.APISecret)
}

type Config struct {
	EventBus *event.Bus
	// Rooms may be nil, in which case teardown is skipped.
	Rooms RoomService
	// LiveKit signs participant tokens.
	LiveKit LiveKitConfig
}

type Service struct {
	rooms    RoomService
	livekit  LiveKitConfig
	tokenTTL time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		rooms:    c.Rooms,
		livekit:  c.LiveKit,
		tokenTTL: c.LiveKit.TokenTTL,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}

	c.EventBus.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return s.Teardown(ctx, e.(domain.EventGameEnded).Game)
	})

	return s
}

// Teardown deletes the room hosting the game, disconnecting every participant.
func (s *Service) Teardown(ctx context.Context, g domain.Game) error {
	if g.Room == "" {
		return nil
	}

	if s.rooms == nil {
		slog.InfoContext(ctx, "room: livekit is not configured, skip teardown", "game", g.GameID, "room", g.Room)
		return nil
	}

	if _, err := s.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: g.Room}); err != nil {
		return fmt.Errorf("delete room %s: %w", g.Room, err)
	}

	slog.InfoContext(ctx, "room: room deleted", "game", g.GameID, "room", g.Room)

	return nil
}
