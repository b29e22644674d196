package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

const defaultTokenTTL = 15 * time.Minute

// ConnectionDetails is what a client needs to join the room of a game.
type ConnectionDetails struct {
	ServerURL        string
	RoomName         string
	ParticipantName  string
	ParticipantToken string
}

// Connect signs a token letting the game's player join its room.
func (s *Service) Connect(ctx context.Context, g domain.Game) (*ConnectionDetails, error) {
	if !s.livekit.Enabled() {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("livekit is not configured"))
	}
	if g.Room == "" {
		return nil, errors.New(errors.CodeInvalidState, errors.WithMessagef("game %s has no room", g.GameID))
	}
	if g.Progress.Status.Terminal() {
		return nil, errors.New(errors.CodeInvalidState,
			errors.WithMessagef("cannot join room: game is %s", g.Progress.Status))
	}

	token, err := auth.NewAccessToken(s.livekit.APIKey, s.livekit.APISecret).
		SetVideoGrant(&auth.VideoGrant{RoomJoin: true, Room: g.Room}).
		SetIdentity(g.Player).
		SetName(g.Player).
		SetValidFor(s.tokenTTL).
		ToJWT()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("sign participant token: %w", err))
	}

	slog.InfoContext(ctx, "room: participant token issued", "game", g.GameID, "room", g.Room, "player", g.Player)

	return &ConnectionDetails{
		ServerURL:        s.livekit.URL,
		RoomName:         g.Room,
		ParticipantName:  g.Player,
		ParticipantToken: token,
	}, nil
}
