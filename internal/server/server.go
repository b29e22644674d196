package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/trivia/internal/agent"
	"github.com/victornm/trivia/internal/answer"
	"github.com/victornm/trivia/internal/api"
	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/game"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/opentdb"
	"github.com/victornm/trivia/internal/room"
	"github.com/victornm/trivia/internal/score"
	"github.com/victornm/trivia/internal/session"
	"github.com/victornm/trivia/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Answer      RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Postgres struct {
		Session PostgresConfig
		Score   PostgresConfig
	}

	OpenTDB struct {
		BaseURL  string        `mapstructure:"base_url"`
		Category int           `mapstructure:"category"`
		Type     string        `mapstructure:"type"`
		Timeout  time.Duration `mapstructure:"timeout"`
	}

	Game struct {
		TotalQuestions int `mapstructure:"total_questions"`
		// Schedule is the difficulty of each question, the last one repeats.
		Schedule        []string      `mapstructure:"schedule"`
		UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
		AnswerKeyTTL    time.Duration `mapstructure:"answer_key_ttl"`
		RetainEnded     time.Duration `mapstructure:"retain_ended"`
	}

	LiveKit room.LiveKitConfig `mapstructure:"livekit"`

	Agent agent.LiveConfig `mapstructure:"agent"`
}

// DefaultConfig returns the config values used when neither the file nor the environment set them.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Redis.Answer.Prefix = "local:answer"
	c.Redis.Leaderboard.Prefix = "local:leaderboard"
	c.Redis.Pubsub.Prefix = "local:pubsub"
	c.OpenTDB.BaseURL = opentdb.DefaultBaseURL
	c.OpenTDB.Category = 9
	c.OpenTDB.Type = opentdb.TypeMultiple
	c.OpenTDB.Timeout = 10 * time.Second
	c.Game.TotalQuestions = 5
	c.Game.Schedule = []string{"medium", "medium", "medium", "medium", "hard"}
	c.Game.UpstreamTimeout = 10 * time.Second
	c.Game.AnswerKeyTTL = time.Hour
	c.Game.RetainEnded = 10 * time.Minute
	c.LiveKit.TokenTTL = 15 * time.Minute
	c.Agent.Model = agent.DefaultModel
	c.Agent.Voice = agent.DefaultVoice
	c.Agent.Temperature = 0.7
	return c
}

type Server struct {
	c        Config
	schedule []domain.Difficulty

	eb *event.Bus

	infra struct {
		redis struct {
			answer      redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			session *pgxpool.Pool
			score   *pgxpool.Pool
		}
	}

	service struct {
		session     *session.Service
		score       *score.Service
		leaderboard *leaderboard.Service
		room        *room.Service
		agent       *agent.Dispatcher
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(c RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.answer, err = connect(s.c.Redis.Answer)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(c PostgresConfig) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.session, err = connect(s.c.Postgres.Session)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.postgres.score, err = connect(s.c.Postgres.Score)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	return nil
}

func (s *Server) initService() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.schedule, err = game.ParseSchedule(s.c.Game.Schedule)
	if err != nil {
		return fmt.Errorf("game schedule: %w", err)
	}

	sessionStore := session.NewPostgresStore(s.infra.postgres.session)
	if err := sessionStore.Migrate(ctx); err != nil {
		return err
	}

	scoreStore := score.NewPostgresStore(s.infra.postgres.score)
	if err := scoreStore.Migrate(ctx); err != nil {
		return err
	}

	keys := answer.NewKeyStore(answer.KeyStoreConfig{
		Redis:  s.infra.redis.answer,
		Prefix: s.c.Redis.Answer.Prefix,
		TTL:    s.c.Game.AnswerKeyTTL,
	})

	questions := opentdb.NewClient(opentdb.Config{
		BaseURL:    s.c.OpenTDB.BaseURL,
		HTTPClient: telemetry.HTTPClient(s.c.OpenTDB.Timeout),
		Keys:       keys,
		Category:   s.c.OpenTDB.Category,
		Type:       s.c.OpenTDB.Type,
	})

	s.service.session = session.NewService(session.Config{
		Store:     sessionStore,
		EventBus:  s.eb,
		Questions: questions,
		Checker:   answer.NewChecker(answer.CheckerConfig{Keys: keys, EventBus: s.eb}),
		Game: session.GameConfig{
			TotalQuestions:  s.c.Game.TotalQuestions,
			Schedule:        s.schedule,
			UpstreamTimeout: s.c.Game.UpstreamTimeout,
		},
		RetainEnded: s.c.Game.RetainEnded,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Store:    scoreStore,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	if !s.c.LiveKit.Enabled() {
		slog.WarnContext(ctx, "server: livekit credentials are not set, rooms will not be torn down")
	}
	s.service.room = room.NewService(room.Config{
		EventBus: s.eb,
		Rooms:    room.NewRoomService(s.c.LiveKit),
		LiveKit:  s.c.LiveKit,
	})

	s.service.agent = agent.NewDispatcher(s.service.session)

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	live := s.c.Agent
	live.TotalQuestions = s.c.Game.TotalQuestions
	live.Schedule = s.schedule

	api.New(api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Score:        s.service.score,
		Leaderboard:  s.service.leaderboard,
		Agent:        s.service.agent,
		Room:         s.service.room,
		Live:         live,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           otelhttp.NewHandler(e, "trivia"),
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.answer, s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	s.infra.postgres.session.Close()
	s.infra.postgres.score.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
