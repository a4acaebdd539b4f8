package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cdecaire/desperse-public-sub002/adapters/challenge"
	"github.com/cdecaire/desperse-public-sub002/adapters/events"
	"github.com/cdecaire/desperse-public-sub002/adapters/identity"
	"github.com/cdecaire/desperse-public-sub002/adapters/oracle"
	"github.com/cdecaire/desperse-public-sub002/adapters/store"
	"github.com/cdecaire/desperse-public-sub002/adapters/tokenizer"
	"github.com/cdecaire/desperse-public-sub002/config"
	"github.com/cdecaire/desperse-public-sub002/ports"
	"github.com/cdecaire/desperse-public-sub002/service"
	transport "github.com/cdecaire/desperse-public-sub002/transport/http"
)

const nonceGCInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "path to config file")
	flag.Parse()

	log := newLogger("info", true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log = newLogger(cfg.Logging.Level, cfg.Logging.JSON)

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.Database.DSN).Msg("failed to open database")
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	gormStore := store.NewGormStore(db)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to reach redis")
		}
	}

	var challenges ports.ChallengeStore
	if redisClient != nil {
		challenges = challenge.NewRedisStore(redisClient, cfg.Challenge.TTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis challenge store")
	} else {
		memStore := challenge.NewMemoryStore(cfg.Challenge.TTL, cfg.Challenge.SweepInterval)
		defer memStore.Close()
		challenges = memStore
	}

	eventPub := events.NewWatermillPublisher(newPublisher(cfg, redisClient, log))

	tok, err := tokenizer.NewHMACTokenizer(cfg.Session.SigningSecret, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build session tokenizer")
	}

	downloads := service.NewDownloadService(
		gormStore, gormStore, gormStore,
		oracle.NewDisabledOracle(),
		log.With().Str("component", "downloads").Logger(),
	)
	sessions := service.NewSIWSService(
		challenges, gormStore,
		identity.NewDisabledProvider(),
		tok, eventPub,
		log.With().Str("component", "sessions").Logger(),
	)

	go pruneNonces(gormStore, log)

	router := transport.SetupRouter(downloads, sessions, tok, log)

	log.Info().Str("addr", cfg.Server.ListenAddr).Msg("starting gateway")
	if err := router.Run(cfg.Server.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if json {
		return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// newPublisher backs the event bus with a Redis stream when Redis is
// configured, and an in-process channel otherwise.
func newPublisher(cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) message.Publisher {
	wmLogger := watermill.NewStdLogger(false, false)
	if !cfg.Events.Enable || redisClient == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		wmLogger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis event publisher")
	}
	return publisher
}

// pruneNonces garbage-collects expired download nonces. Consumption
// correctness never depends on this; it only keeps the table small.
func pruneNonces(s *store.GormStore, log zerolog.Logger) {
	ticker := time.NewTicker(nonceGCInterval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := s.PruneNonces(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("nonce prune failed")
		}
	}
}
