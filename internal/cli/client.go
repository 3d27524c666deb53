package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tktogether/motleycrowd/internal/config"
	"github.com/tktogether/motleycrowd/internal/domain"
	"github.com/tktogether/motleycrowd/internal/game"
	"github.com/tktogether/motleycrowd/internal/infra/memory"
	pgloader "github.com/tktogether/motleycrowd/internal/infra/postgres"
	redisinfra "github.com/tktogether/motleycrowd/internal/infra/redis"
	"github.com/tktogether/motleycrowd/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand that connects to the game server and
// runs the session until interrupted.
func NewStartCmd(configPath, serverURL, userID *string) *cobra.Command {
	var pairType string
	var joinRoom string
	var createType string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to the game server and track the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), *configPath, *serverURL, *userID, pairType, joinRoom, createType)
		},
	}
	cmd.Flags().StringVar(&pairType, "pair", "", "request public matchmaking for a game type after connecting")
	cmd.Flags().StringVar(&joinRoom, "join", "", "join a private room by id after connecting")
	cmd.Flags().StringVar(&createType, "create", "", "create a private room for a game type after connecting")
	return cmd
}

func runClient(ctx context.Context, configPath, serverFlag, userFlag, pairType, joinRoom, createType string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", configPath).Msg("config not loaded, using defaults")
		cfg = config.Config{}
	}

	url := serverFlag
	if url == "" {
		url = cfg.Server.URL
	}
	if url == "" {
		url = "ws://localhost:1919"
	}
	localUser := userFlag
	if localUser == "" {
		localUser = cfg.Server.UserID
	}
	if localUser == "" {
		return fmt.Errorf("local user id required (--user or server.user_id)")
	}

	resolver, cleanup, err := buildResolver(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := ws.Dial(ctx, url, logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer client.Close()

	session := game.NewSession(localUser, client, resolver)
	game.Bind(ctx, client, session, logger)

	notifications, unsubscribe := session.Subscribe()
	defer unsubscribe()
	go logNotifications(logger, notifications)

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run() }()

	switch {
	case pairType != "":
		if !session.Pair(ctx, pairType) {
			logger.Error().Str("type", pairType).Msg("pairing rejected")
		}
	case joinRoom != "":
		if !session.Join(ctx, joinRoom) {
			logger.Error().Str("room", joinRoom).Msg("join rejected")
		}
	case createType != "":
		if session.Create(ctx, createType) {
			logger.Info().Str("room", session.Room()).Msg("room created")
		} else {
			logger.Error().Str("type", createType).Msg("create rejected")
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down...")
	case err := <-runDone:
		return err
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if session.InRoom() && !session.Leave(leaveCtx) {
		logger.Warn().Msg("leave rejected, closing anyway")
	}
	return client.Close()
}

// buildResolver assembles the question catalog stack from config: postgres
// loader when configured (demo set otherwise), wrapped by a redis or
// in-process cache.
func buildResolver(ctx context.Context, cfg config.Config) (game.QuestionResolver, func(), error) {
	ttl := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	cleanup := func() {}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		cleanup = pool.Close
		loader = pgloader.NewQuestionLoader(pool)
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		poolCleanup := cleanup
		cleanup = func() {
			_ = client.Close()
			poolCleanup()
		}
		return redisinfra.NewQuestionCatalog(client, loader, ttl), cleanup, nil
	}
	return memory.NewQuestionCatalog(loader, ttl), cleanup, nil
}

func logNotifications(logger zerolog.Logger, notifications <-chan game.Notification) {
	for n := range notifications {
		switch n.Kind {
		case game.KindUsersChanged:
			logger.Info().Int("count", len(n.Users)).Msg("room membership changed")
		case game.KindGameStarted:
			logger.Info().Msg("game started")
		case game.KindNewQuestion:
			logger.Info().Str("question", n.Question.ID).Str("prompt", n.Question.Prompt).Msg("new question")
		case game.KindAnswerProgress:
			logger.Info().Int("answered", n.AnswerCount).Msg("answer progress")
		case game.KindSettlement:
			logSettlement(logger, n.Settlement)
		case game.KindResumedQuestion:
			logger.Info().Str("question", n.Question.ID).Str("answer", n.Answer).Msg("resumed into question")
		default:
			logger.Info().Str("kind", string(n.Kind)).Msg("session update")
		}
	}
}

func logSettlement(logger zerolog.Logger, settlement *game.Settlement) {
	for _, user := range settlement.Users() {
		score, err := settlement.ScoreOf(user.ID)
		if err != nil {
			continue
		}
		logger.Info().
			Int("rank", settlement.RankOf(user.ID)).
			Str("user", user.Username).
			Float64("score", score.Total()).
			Msg("final standing")
	}
}

// sampleQuestions provides a minimal demo catalog; configure postgres to load
// real content.
func sampleQuestions() map[string]domain.QuestionContent {
	return map[string]domain.QuestionContent{
		"q1": {
			ID:      "q1",
			Prompt:  "Pick the crowd's least popular option",
			Options: []string{"A", "B", "C", "D"},
		},
		"q2": {
			ID:      "q2",
			Prompt:  "Pick the crowd's most popular option",
			Options: []string{"A", "B", "C", "D"},
		},
	}
}
