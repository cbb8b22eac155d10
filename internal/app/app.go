package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/config"
	"github.com/electvote/electvote/internal/handlers"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/metrics"
	"github.com/electvote/electvote/internal/notify"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/services"
	"github.com/electvote/electvote/internal/websocket"
)

// App holds all application dependencies
type App struct {
	cfg       *config.Config
	log       logger.Logger
	repo      *repository.Repository
	redis     *redis.Client
	handlers  *handlers.Handlers
	hub       *websocket.Hub
	elections *services.ElectionService
	apps      *services.ApplicationService
	server    *http.Server

	// set when the admin account was created with a generated password
	adminPassword string

	cancel context.CancelFunc
}

// New creates and initializes a new application instance. Background
// workers (websocket hub, phase watcher) start immediately.
func New(log logger.Logger, cfg *config.Config, clk clock.Clock) (*App, error) {
	repo, err := repository.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}

	a := &App{cfg: cfg, log: log, repo: repo}
	if err := a.init(clk); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(clk clock.Clock) error {
	cfg := a.cfg

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = auth.GenerateSecret()
		a.log.Warn("No token secret configured; tokens will not survive a restart")
	}
	tokens := auth.New(secret, cfg.Auth.TokenTTL)
	m := metrics.New()

	sinks := notify.Fanout{notify.NewStore(a.repo, clk)}
	if cfg.Redis.URL != "" {
		client, err := notify.Connect(cfg.Redis.URL)
		if err != nil {
			return err
		}
		a.redis = client
		relay := notify.NewRedis(client, cfg.Redis.Channel, clk)
		sinks = append(sinks, relay)
		a.log.Info("Publishing notifications to Redis", "channel", relay.Channel())
	}

	// Initialize services
	a.elections = services.NewElectionService(a.log, a.repo, clk)
	ballots := services.NewBallotService(a.log, a.repo, clk)
	tally := services.NewTallyService(a.log, a.repo, clk)
	a.apps = services.NewApplicationService(a.log, a.repo, clk, sinks)
	users := services.NewUserService(a.log, a.repo, clk, tokens)

	// Initialize WebSocket hub with DI
	a.hub = websocket.New(a.log, a.elections)
	a.hub.SetObserver(m)

	a.elections.SetPublisher(a.hub)
	a.elections.SetRecorder(m)
	ballots.SetPublisher(a.hub)
	ballots.SetRecorder(m)
	a.apps.SetPublisher(a.hub)
	a.apps.SetRecorder(m)

	if err := a.seedAdmin(users); err != nil {
		return err
	}

	h := handlers.New(a.elections, a.apps, ballots, tally, users, tokens, a.log)
	h.WS = a.hub.ServeWs
	h.Metrics = m
	h.Health = a.repo
	h.BaseURL = cfg.BaseURL
	if cfg.Voting.RateLimit > 0 {
		if a.redis != nil {
			h.Limiter = handlers.NewRedisLimiter(a.redis, cfg.Voting.RateLimit, cfg.Voting.RateWindow)
		} else {
			h.Limiter = handlers.NewMemoryLimiter(cfg.Voting.RateLimit, cfg.Voting.RateWindow, clk)
		}
	}
	a.handlers = h
	a.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the hub and phase watcher with a context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.hub.Start(ctx)
	go a.hub.WatchPhases(ctx, cfg.Voting.PhaseInterval)
	return nil
}

// seedAdmin creates the configured admin account when it does not exist
func (a *App) seedAdmin(users *services.UserService) error {
	password := a.cfg.Admin.Password
	generated := password == ""
	if generated {
		password = auth.GeneratePassword()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	created, err := users.EnsureAdmin(ctx, a.cfg.Admin.Username, password)
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	if created && generated {
		a.adminPassword = password
	}
	return nil
}

// AdminPassword returns the generated admin password, or "" when the
// password was configured or the account already existed
func (a *App) AdminPassword() string {
	return a.adminPassword
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL returns the configured public URL or one built from the LAN address
func (a *App) BaseURL() string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL
	}
	return fmt.Sprintf("http://%s:%d", getPreferredIP(realNetworkProvider{}), a.cfg.Port)
}

// CurrentElectionURL returns the voting page of the current election, or
// the base URL when no election is running
func (a *App) CurrentElectionURL(ctx context.Context) string {
	e, err := a.elections.CurrentElection(ctx)
	if err != nil {
		return a.BaseURL()
	}
	return fmt.Sprintf("%s/vote/%d", a.BaseURL(), e.ID)
}

// Run starts the HTTP server and blocks until it stops
func (a *App) Run() error {
	a.log.Info("Server starting", "url", a.BaseURL(), "driver", a.cfg.Database.Driver)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then
// releases every resource
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close stops background workers and releases resources
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.apps != nil {
		a.apps.Wait()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}
