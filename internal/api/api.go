package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/trivia/internal/agent"
	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/room"
	"github.com/victornm/trivia/internal/score"
	"github.com/victornm/trivia/internal/session"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         *gin.Engine
	EventBus     *event.Bus
	Session      *session.Service
	Score        *score.Service
	Leaderboard  *leaderboard.Service
	Agent        *agent.Dispatcher
	Room         *room.Service
	Live         agent.LiveConfig
	Redis        Redis
	PubsubPrefix string
}

// Redis is the pubsub side of redis used for notifications.
type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	gs *session.Service
	ss *score.Service
	ls *leaderboard.Service
	ad *agent.Dispatcher
	rs *room.Service

	live   agent.LiveConfig
	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		gs:     c.Session,
		ss:     c.Score,
		ls:     c.Leaderboard,
		ad:     c.Agent,
		rs:     c.Room,
		live:   c.Live,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&agentServiceDesc, a)
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return a.PublishGameEnded(ctx, e.(domain.EventGameEnded))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}
