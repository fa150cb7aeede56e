package cli

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"anime-trivia-service/internal/app"
	"anime-trivia-service/internal/config"
	"anime-trivia-service/internal/domain"
	"anime-trivia-service/internal/generation"
	"anime-trivia-service/internal/infra/memory"
	pgstore "anime-trivia-service/internal/infra/postgres"
	redisstore "anime-trivia-service/internal/infra/redis"
	"anime-trivia-service/internal/ranking"
	"anime-trivia-service/internal/stats"
	transport "anime-trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// dataStore is the full persistence surface; both the memory and postgres
// stores satisfy it.
type dataStore interface {
	generation.UsageStore
	generation.SetStore
	generation.CategorySource
	ranking.RankingStore
	ranking.SnapshotStore
	stats.MetadataStore
	stats.Source
	app.AttemptStore
}

type backends struct {
	store     dataStore
	questions generation.QuestionSource
	meta      stats.MetadataStore
	closers   []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends wires the configured stores: postgres plus optional redis, or a
// seeded in-memory store when no postgres URL is configured (demo mode).
func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		b.closers = append(b.closers, func() { _ = db.Close() })

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		store := pgstore.NewStore(db)
		b.store = store
		b.questions = pgstore.NewQuestionPool(pool)
		b.meta = store
	} else {
		log.Warn("no postgres configured, running on in-memory demo data")
		store := memory.NewStore()
		store.SeedQuestions(sampleQuestions()...)
		store.SeedAnimes(sampleAnimes()...)
		b.store = store
		b.questions = store
		b.meta = store
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.meta = redisstore.NewMetadataStore(client)
	}
	return b, nil
}

func buildOrchestrator(b *backends, cfg config.Config, log *slog.Logger) *generation.Orchestrator {
	selector := generation.NewSelector(b.questions, log)
	usage := generation.NewUsageTracker(b.store, log)
	return generation.NewOrchestrator(
		selector, usage, b.store, b.store, b.questions,
		cfg.Quiz.QuestionsPerDay, cfg.Quiz.MinCategoryQuestions, log)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	orchestrator := buildOrchestrator(b, cfg, log)
	boards := ranking.NewCacheBuilder(b.store, log)
	aggregator := ranking.NewAggregator(b.store, boards, log)
	statsCache := stats.NewCache(b.meta, b.store, stats.Options{
		MemoryTTL:   config.TTLDuration(cfg.StatsCache.MemoryTTL, 30*time.Minute),
		MetadataTTL: config.TTLDuration(cfg.StatsCache.MetadataTTL, 24*time.Hour),
		MinCount:    cfg.StatsCache.MinQuestions,
		Concurrency: cfg.StatsCache.CountConcurrency,
	}, log)
	service := app.NewTriviaService(b.store, aggregator, log)
	handler := transport.NewHandler(service, boards, statsCache, orchestrator,
		cfg.Quiz.AdminSecret, cfg.Quiz.RetentionDays, log)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal pool for store-less demo runs.
func sampleQuestions() []domain.Question {
	questions := make([]domain.Question, 0, 24)
	animes := sampleAnimes()
	texts := []string{
		"Who leads the main squad?",
		"Which village does the story open in?",
		"What is the protagonist's signature move?",
		"Who is the first major antagonist?",
		"Which episode reveals the twist?",
		"What artifact drives the plot?",
		"Who trains the protagonist?",
		"Which arc introduces the rival?",
		"What is the name of the final battle site?",
		"Which character never appears in season one?",
		"What power awakens mid-season?",
		"Who narrates the opening?",
	}
	for i, text := range texts {
		for j, anime := range animes {
			questions = append(questions, domain.Question{
				ID:            anime.ID + "-q" + string(rune('a'+i)),
				Text:          text,
				Options:       []string{"Option A", "Option B", "Option C", "Option D"},
				CorrectOption: (i + j) % 4,
				AnimeID:       anime.ID,
				AnimeName:     anime.Name,
				RandomKey:     float64(i*len(animes)+j) / float64(len(texts)*len(animes)),
			})
		}
	}
	return questions
}

func sampleAnimes() []domain.Anime {
	return []domain.Anime{
		{ID: "naruto", Name: "Naruto", Popularity: 98},
		{ID: "one-piece", Name: "One Piece", Popularity: 95},
	}
}
