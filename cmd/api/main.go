package main

import (
	"context"
	"os"
	"time"

	"ballot-engine/config"
	"ballot-engine/internal/aggregation"
	"ballot-engine/internal/events"
	"ballot-engine/internal/handler"
	"ballot-engine/internal/outbox"
	"ballot-engine/internal/prediction"
	"ballot-engine/internal/redis"
	"ballot-engine/internal/repository"
	"ballot-engine/internal/repository/memory"
	"ballot-engine/internal/server"
	"ballot-engine/internal/services"
	"ballot-engine/internal/storage"
	"ballot-engine/internal/websocket"
	"ballot-engine/pkg/database"
	"ballot-engine/pkg/logger"
)

const memoryDriver = "memory"

type stores struct {
	polls  repository.PollRepository
	tally  repository.TallyRepository
	outbox repository.OutboxRepository
}

func main() {
	cfg := config.LoadConfig()

	log := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]server.HealthCheck{}

	var st stores
	if cfg.StorageDriver == memoryDriver {
		mem := memory.NewStore()
		st = stores{polls: mem.Polls(), tally: mem.Tally(), outbox: mem.Outbox()}
		log.Warnf("Running with in-memory storage; data is lost on restart")
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := repository.InitSchema(db); err != nil {
			log.Errorf("Failed to migrate schema: %v", err)
			os.Exit(1)
		}
		st = stores{
			polls:  repository.NewPollRepository(db),
			tally:  repository.NewTallyRepository(db),
			outbox: repository.NewOutboxRepository(db),
		}
		checks["database"] = database.HealthCheck
	}

	engine := aggregation.NewEngine(aggregation.Config{
		AnomalyThresholdMultiplier: cfg.AnomalyThresholdMultiplier,
		TrendThreshold:             cfg.TrendThreshold,
		MaxSnapshots:               cfg.AggregationMaxSnapshots,
	}, log)

	var predictor prediction.Predictor
	if cfg.PredictionURL != "" {
		predictor = prediction.NewHTTPClient(cfg.PredictionURL, cfg.PredictionTimeout)
	}

	var s3Client *storage.Client
	if cfg.S3Bucket != "" {
		client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: 15 * time.Minute,
		})
		if err != nil {
			log.Errorf("Failed to create S3 client: %v", err)
			os.Exit(1)
		}
		s3Client = client
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	var (
		cache   services.ResultsCache
		limiter *redis.RateLimiter
		live    events.Publisher = hub
	)
	if cfg.StorageDriver != memoryDriver {
		redis.Initialize(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rdb := redis.GetClient()
		cache = redis.NewResultsCache(rdb, cfg.ResultsCacheTTL)
		limiter = redis.NewRateLimiter(rdb, redis.RateLimitConfig{
			VoteLimit:  cfg.VoteRateLimit,
			VoteWindow: cfg.VoteRateWindow,
		})
		live = redis.NewPublisher(rdb)
		checks["redis"] = redis.Ping
	}

	pollService := services.NewPollService(st.polls, log)
	tallyService := services.NewTallyService(st.polls, st.tally, cache, log)
	analyticsService := services.NewAnalyticsService(engine, predictor, cfg.PredictionTimeout, log)
	var archiveService *services.ArchiveService
	if s3Client != nil {
		archiveService = services.NewArchiveService(s3Client, tallyService, engine, log)
	}
	ingestService := services.NewIngestService(engine, archiveService, live, log).WithArchiveTimeout(cfg.ArchiveTimeout)

	resolver := events.NewStreamResolver(cfg.VoteStreamPrefix, cfg.VoteStreamShards)
	var relay events.Publisher
	if cfg.StorageDriver == memoryDriver {
		relay = events.NewLoopback(ingestService.Handle)
	} else {
		rdb := redis.GetClient()
		relay = redis.NewStreamPublisher(rdb, cfg.StreamMaxLen)

		consumer := redis.NewStreamConsumer(rdb, redis.StreamConsumerConfig{
			Group:    cfg.VoteConsumerGroup,
			Consumer: cfg.VoteConsumerName,
			Streams:  resolver.Streams(),
			Block:    cfg.StreamBlock,
		}, ingestService.Handle, log)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Errorf("Vote stream consumer stopped: %v", err)
			}
		}()

		bridge := websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("Live results bridge stopped: %v", err)
			}
		}()
	}
	outbox.NewRunner(outbox.DefaultProcessor(cfg, st.outbox, relay, resolver, log)).Start(ctx)

	authService := services.NewAuthService(cfg.JWTSecret, cfg.JWTIssuer)

	var links handler.ArchiveLinker
	if s3Client != nil {
		links = s3Client
	}
	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		Polls:    handler.NewPollHandler(pollService),
		Votes:    handler.NewVoteHandler(tallyService),
		Results:  handler.NewResultsHandler(tallyService, archiveService, links),
		Analysis: handler.NewAnalysisHandler(analyticsService),
		Live:     websocket.NewHandler(authService, hub, websocket.NewChannelAuthorizer(st.polls), analyticsService, log),
	}, authService, limiter, checks)

	if err := srv.Start(); err != nil {
		log.Errorf("Server error: %v", err)
	}
}
