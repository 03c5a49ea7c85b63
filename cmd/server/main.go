package main

import (
	// Go Internal Packages
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Local Packages
	accounts "transaction-engine/internal/accounts"
	config "transaction-engine/internal/config"
	domain "transaction-engine/internal/domain"
	events "transaction-engine/internal/events"
	server "transaction-engine/internal/server"
	service "transaction-engine/internal/service"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// LoadConfig loads the default configuration and overrides it with the config
// file specified by the path defined in the config flag
func LoadConfig() *koanf.Koanf {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Parse()
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if *configPath != "" {
		_ = k.Load(file.Provider(*configPath), yaml.Parser())
	}
	return k
}

func main() {
	k := LoadConfig()
	appKonf := config.Config{}

	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if err = appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !appKonf.IsProdMode {
		k.Print()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(k.String("logger.level")))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = appKonf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accountsClient := accounts.NewClient(appKonf.Accounts, logger)

	// Dead-letter stash for events that fail to publish, optional.
	var dlq events.DeadLetter
	if appKonf.Redis.URI != "" {
		redisClient, err := events.Connect(ctx, appKonf.Redis.URI, appKonf.Redis.Password)
		if err != nil {
			logger.Fatal("cannot create redis client", zap.Error(err))
		}
		dlq = events.NewRedisDeadLetter(redisClient, logger)
	}

	// Completion events are best-effort; with no brokers configured the
	// engine runs without publishing.
	var publisher domain.EventPublisher = events.NopPublisher{}
	if len(appKonf.Kafka.Brokers) > 0 {
		metrics := kprom.NewMetrics("te")
		kafkaPublisher, err := events.NewKafkaPublisher(appKonf.Kafka, dlq, metrics, logger)
		if err != nil {
			logger.Fatal("cannot create kafka publisher", zap.Error(err))
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	srv, err := server.New(&appKonf, logger, accountsClient, publisher)
	if err != nil {
		logger.Fatal("cannot create server", zap.Error(err))
	}

	port, err := srv.Start(appKonf.Server.Port)
	if err != nil {
		logger.Fatal("cannot start server", zap.Error(err))
	}
	logger.Info("server started", zap.String("port", port))

	if appKonf.Reconciler.Enabled {
		reconciler := service.NewReconciler(appKonf.Reconciler, srv.Store(), accountsClient, logger)
		go reconciler.Run(ctx)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
