// Package worker runs the INKINGI USSD gateway HTTP service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/internal/ai"
	"github.com/thebtf/inkingi-ussd/internal/backend"
	"github.com/thebtf/inkingi-ussd/internal/config"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/internal/session"
	"github.com/thebtf/inkingi-ussd/internal/sms"
	"github.com/thebtf/inkingi-ussd/internal/ussd"
	"github.com/thebtf/inkingi-ussd/internal/watcher"
	"github.com/thebtf/inkingi-ussd/internal/worker/sse"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// Pinger reports whether the backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service is the gateway process: HTTP endpoints plus background loops.
type Service struct {
	startTime  time.Time
	pinger     Pinger
	config     *config.Config
	engine     *ussd.Engine
	translator *i18n.Translator
	notifier   *sms.Notifier
	sweeper    *session.Sweeper
	events     *sse.Broadcaster
	metrics    *requestMetrics
	router     *chi.Mux
	server     *http.Server
	closers    []func() error
	version    string
	aiEnabled  bool
	ready      atomic.Bool
}

// NewService wires every collaborator from cfg.
func NewService(ctx context.Context, version string, cfg *config.Config) (*Service, error) {
	tr, err := i18n.New(cfg.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	svc := &Service{
		version:    version,
		config:     cfg,
		translator: tr,
		events:     sse.NewBroadcaster(),
		metrics:    newRequestMetrics(),
		router:     chi.NewRouter(),
		startTime:  time.Now(),
	}

	store := svc.openStore(cfg)
	svc.sweeper = session.NewSweeper(store, cfg.SweepInterval)

	data := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	svc.pinger = data

	guidance, err := svc.openGuidance(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sender sms.Sender
	if cfg.SMSEnabled && cfg.ATAPIKey != "" {
		sender = sms.NewClient(sms.Options{
			Username: cfg.ATUsername,
			APIKey:   cfg.ATAPIKey,
			SenderID: cfg.SenderID,
		})
	} else {
		log.Warn().Msg("SMS disabled: set INKINGI_SMS_ENABLED and AT_API_KEY to enable")
	}
	svc.notifier = sms.NewNotifier(sender, cfg.RescueTeamNumbers)

	svc.engine = ussd.NewEngine(menu.Default(tr), store, data, guidance, svc.notifier)
	svc.setupRoutes()
	return svc, nil
}

func (s *Service) openStore(cfg *config.Config) session.Store {
	if cfg.SessionBackend == config.SessionBackendRedis {
		rs, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err == nil {
			s.closers = append(s.closers, rs.Close)
			log.Info().Msg("Using Redis session store")
			return rs
		}
		log.Error().Err(err).Msg("Redis session store unavailable, falling back to memory")
	}
	return session.NewMemoryStore(cfg.SessionTTL)
}

func (s *Service) openGuidance(ctx context.Context, cfg *config.Config) (*ai.Service, error) {
	instructions, err := ai.LoadInstructions(cfg.AIInstructions)
	if err != nil {
		return nil, err
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, serving built-in safety guidance")
		return ai.NewService(nil, instructions), nil
	}
	gen, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		log.Error().Err(err).Msg("Gemini unavailable, serving built-in safety guidance")
		return ai.NewService(nil, instructions), nil
	}
	s.aiEnabled = true
	return ai.NewService(gen, instructions), nil
}

// Engine returns the navigation engine.
func (s *Service) Engine() *ussd.Engine { return s.engine }

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Str("version", s.version).Msg("USSD gateway listening")
		s.ready.Store(true)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sweeper.Run(gctx)
		return nil
	})

	if dir := s.translator.OverrideDir(); dir != "" {
		w, err := watcher.New(dir, s.reloadTranslations, ".yaml", ".yml")
		if err != nil {
			return fmt.Errorf("create locales watcher: %w", err)
		}
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("Locales watcher stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})

	return g.Wait()
}

func (s *Service) reloadTranslations() {
	if err := s.translator.Reload(); err != nil {
		log.Error().Err(err).Msg("Failed to reload translations, keeping previous catalogs")
		return
	}
	log.Info().Str("dir", s.translator.OverrideDir()).Msg("Translations reloaded")
}

// Shutdown stops the HTTP server and releases collaborators.
func (s *Service) Shutdown() error {
	s.ready.Store(false)
	s.sweeper.Stop()

	var errs []error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.notifier.Wait()
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	log.Info().Msg("USSD gateway stopped")
	return errors.Join(errs...)
}
