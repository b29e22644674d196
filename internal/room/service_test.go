package room_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/room"
)

func TestService_Teardown(t *testing.T) {
	tests := map[string]struct {
		rooms  *fakeRooms
		game   domain.Game
		assert func(t *testing.T, rooms *fakeRooms, err error)
	}{
		"deletes the game's room": {
			rooms: &fakeRooms{},
			game:  domain.Game{GameID: "g1", Room: "room-1"},
			assert: func(t *testing.T, rooms *fakeRooms, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"room-1"}, rooms.deleted)
			},
		},
		"skips games without a room": {
			rooms: &fakeRooms{},
			game:  domain.Game{GameID: "g1"},
			assert: func(t *testing.T, rooms *fakeRooms, err error) {
				require.NoError(t, err)
				assert.Empty(t, rooms.deleted)
			},
		},
		"returns livekit failures": {
			rooms: &fakeRooms{err: stderrors.New("twirp error unavailable")},
			game:  domain.Game{GameID: "g1", Room: "room-1"},
			assert: func(t *testing.T, rooms *fakeRooms, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "room-1")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := room.NewService(room.Config{EventBus: event.NewBus(), Rooms: tt.rooms})
			err := s.Teardown(context.Background(), tt.game)
			tt.assert(t, tt.rooms, err)
		})
	}
}

func TestService_TeardownWithoutLiveKit(t *testing.T) {
	rooms := room.NewRoomService(room.LiveKitConfig{URL: "ws://localhost:7880"})
	require.Nil(t, rooms, "incomplete credentials should disable the client")

	s := room.NewService(room.Config{EventBus: event.NewBus()})
	require.NoError(t, s.Teardown(context.Background(), domain.Game{GameID: "g1", Room: "room-1"}))
}

func TestService_TeardownOnGameEnded(t *testing.T) {
	eb := event.NewBus()
	rooms := &fakeRooms{}
	_ = room.NewService(room.Config{EventBus: eb, Rooms: rooms})

	eb.Publish(context.Background(), domain.EventGameEnded{
		Game: domain.Game{GameID: "g1", Room: "room-1", Progress: domain.Progress{Status: domain.StatusAborted}},
	})
	eb.Stop()

	assert.Equal(t, []string{"room-1"}, rooms.deleted)
}

func TestService_Connect(t *testing.T) {
	const secret = "a-secret-long-enough-for-hmac-signing"
	livekit := room.LiveKitConfig{URL: "wss://trivia.livekit.test", APIKey: "key", APISecret: secret}

	tests := map[string]struct {
		livekit room.LiveKitConfig
		game    domain.Game
		assert  func(t *testing.T, d *room.ConnectionDetails, err error)
	}{
		"signs a token for the game's room": {
			livekit: livekit,
			game:    domain.Game{GameID: "g1", Player: "alice", Room: "room-1"},
			assert: func(t *testing.T, d *room.ConnectionDetails, err error) {
				require.NoError(t, err)
				assert.Equal(t, "wss://trivia.livekit.test", d.ServerURL)
				assert.Equal(t, "room-1", d.RoomName)
				assert.Equal(t, "alice", d.ParticipantName)

				claims := jwt.MapClaims{}
				_, err = jwt.ParseWithClaims(d.ParticipantToken, claims, func(*jwt.Token) (any, error) {
					return []byte(secret), nil
				})
				require.NoError(t, err, "token should be signed with the api secret")
				assert.Equal(t, "key", claims["iss"])
				assert.Equal(t, "alice", claims["sub"])
				assert.Equal(t, map[string]any{"roomJoin": true, "room": "room-1"}, claims["video"])
			},
		},
		"game without a room": {
			livekit: livekit,
			game:    domain.Game{GameID: "g1", Player: "alice"},
			assert: func(t *testing.T, _ *room.ConnectionDetails, err error) {
				require.ErrorIs(t, err, errors.ErrInvalidState)
			},
		},
		"game already over": {
			livekit: livekit,
			game: domain.Game{GameID: "g1", Player: "alice", Room: "room-1",
				Progress: domain.Progress{Status: domain.StatusCompleted}},
			assert: func(t *testing.T, _ *room.ConnectionDetails, err error) {
				require.ErrorIs(t, err, errors.ErrInvalidState)
			},
		},
		"livekit not configured": {
			game: domain.Game{GameID: "g1", Player: "alice", Room: "room-1"},
			assert: func(t *testing.T, _ *room.ConnectionDetails, err error) {
				require.ErrorIs(t, err, errors.ErrUnavailable)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := room.NewService(room.Config{EventBus: event.NewBus(), LiveKit: tt.livekit})
			d, err := s.Connect(context.Background(), tt.game)
			tt.assert(t, d, err)
		})
	}
}

type fakeRooms struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeRooms) DeleteRoom(_ context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	f.deleted = append(f.deleted, req.Room)
	f.mu.Unlock()
	return &livekit.DeleteRoomResponse{}, nil
}
