package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/formbridge/internal/analytics"
	"github.com/ignite/formbridge/internal/api"
	"github.com/ignite/formbridge/internal/config"
	"github.com/ignite/formbridge/internal/database"
	"github.com/ignite/formbridge/internal/email"
	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
	"github.com/ignite/formbridge/internal/integration/hubspot"
	"github.com/ignite/formbridge/internal/integration/mailchimp"
	"github.com/ignite/formbridge/internal/pkg/distlock"
	"github.com/ignite/formbridge/internal/pkg/logger"
	"github.com/ignite/formbridge/internal/submission"
	"github.com/ignite/formbridge/internal/subscriber"
	"github.com/ignite/formbridge/internal/webhook"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process fails the boot loudly instead of silently serving.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("formbridge server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	log.Println("Database ready")

	// Stores
	forms := form.NewStore(db)
	submissions := submission.NewStore(db)
	integrations := integration.NewStore(db)
	events := analytics.NewStore(db)

	// Analytics cache: Redis when configured, otherwise recompute per read.
	var cache analytics.Cache = analytics.NoopCache{}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable, serving analytics uncached: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			cache = analytics.NewRedisCache(redisClient, cfg.Analytics.CacheTTL(), logger.Component("cache"))
			log.Println("Analytics cache enabled")
		}
	}
	aggregator := analytics.NewAggregator(events, cache, cfg.Analytics.RecentEventLimit)

	// Provider connectors: admin-saved credentials win, config seeds
	// the fallback. Factories rebuild a connector after a settings save.
	registry := integration.NewRegistry(integrations)
	mcCfg := cfg.Mailchimp
	registry.RegisterFactory(form.ProviderMailchimp, func(creds map[string]string) (integration.Connector, error) {
		key := strings.TrimSpace(creds["api_key"])
		if key == "" {
			return nil, integration.Errorf(integration.CategoryAuth, "mailchimp api key not set")
		}
		c := mcCfg
		c.APIKey = key
		return mailchimp.NewClient(c), nil
	})
	hsCfg := cfg.HubSpot
	registry.RegisterFactory(form.ProviderHubSpot, func(creds map[string]string) (integration.Connector, error) {
		token := strings.TrimSpace(creds["access_token"])
		if token == "" {
			return nil, integration.Errorf(integration.CategoryAuth, "hubspot access token not set")
		}
		c := hsCfg
		c.AccessToken = token
		return hubspot.NewClient(c), nil
	})
	if cfg.Mailchimp.APIKey != "" {
		registry.Seed(mailchimp.NewClient(cfg.Mailchimp))
		log.Println("Mailchimp connector seeded from config")
	}
	if cfg.HubSpot.AccessToken != "" {
		registry.Seed(hubspot.NewClient(cfg.HubSpot))
		log.Println("HubSpot connector seeded from config")
	}
	dispatcher := integration.NewDispatcher(integrations, aggregator, registry)

	// Pipeline listeners run in order: count, dispatch, notify.
	listeners := []submission.Listener{aggregator, dispatcher}
	if cfg.Email.Enabled {
		sender, err := email.NewSESSender(context.Background(), cfg.Email)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		html, err := email.NewHTMLRenderer()
		if err != nil {
			log.Fatalf("Failed to compile email template: %v", err)
		}
		listeners = append(listeners, email.NewNotifier(sender, html, cfg.Email.SiteName))
		log.Println("Operator notifications enabled")
	}
	pipeline := submission.NewPipeline(forms, submissions, listeners...)

	receiver := webhook.NewReceiver(cfg.Webhook.SharedSecret,
		subscriber.NewStore(db), aggregator)

	handlers := api.NewHandlers(api.Deps{
		Forms:        forms,
		Submissions:  submissions,
		Pipeline:     pipeline,
		Integrations: integrations,
		Analytics:    aggregator,
		Connectors:   registry,
	})
	server := api.NewServer(cfg.Server, handlers, receiver, cfg.Admin.APIKey)

	// Retention pruner; the lock keeps one replica on the job.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pruneLock := distlock.New(redisClient, db, "analytics-prune", time.Hour)
	go pruneLoop(ctx, aggregator, pruneLock, cfg.Analytics.Retention())

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Listening on %s", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-stop:
		log.Printf("Received %v, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Server stopped")
}

// pruneLoop applies the analytics retention policy once a day.
func pruneLoop(ctx context.Context, agg *analytics.Aggregator, lock distlock.Lock, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := lock.Acquire(ctx)
			if err != nil {
				log.Printf("Prune lock error: %v", err)
				continue
			}
			if !ok {
				continue // another replica is pruning
			}
			if _, err := agg.Prune(ctx, time.Now().Add(-retention)); err != nil {
				log.Printf("Analytics prune failed: %v", err)
			}
			lock.Release(ctx)
		}
	}
}
