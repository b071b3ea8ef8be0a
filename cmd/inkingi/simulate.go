package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thebtf/inkingi-ussd/internal/ai"
	"github.com/thebtf/inkingi-ussd/internal/backend"
	"github.com/thebtf/inkingi-ussd/internal/config"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/internal/session"
	"github.com/thebtf/inkingi-ussd/internal/ussd"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

type simulateOptions struct {
	path      string
	sessionID string
	phone     string
	offline   bool
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a dialed path keystroke by keystroke and print every screen",
		Example: `  inkingi simulate --offline --path '1*1*2*3*Help I am trapped*1'
  inkingi simulate --path '1*2*1'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			setupLogging(cfg, true)

			engine, err := simulationEngine(background(cmd), cfg, opts.offline)
			if err != nil {
				return err
			}
			return simulate(background(cmd), cmd.OutOrStdout(), engine, opts)
		},
	}
	cmd.Flags().StringVar(&opts.path, "path", "", "dialed path, keys separated by *")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id (default: random uuid)")
	cmd.Flags().StringVar(&opts.phone, "phone", "+250788000000", "subscriber phone number")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use canned backend data and built-in guidance")
	return cmd
}

func simulationEngine(ctx context.Context, cfg *config.Config, offline bool) (*ussd.Engine, error) {
	tr, err := i18n.New(cfg.LocalesDir)
	if err != nil {
		return nil, err
	}
	store := session.NewMemoryStore(cfg.SessionTTL)

	if offline {
		return ussd.NewEngine(menu.Default(tr), store, offlineBackend{}, ai.NewService(nil, ""), nil), nil
	}

	guidance := ai.NewService(nil, "")
	if cfg.GeminiAPIKey != "" {
		gen, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		guidance = ai.NewService(gen, "")
	}
	data := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	return ussd.NewEngine(menu.Default(tr), store, data, guidance, nil), nil
}

// simulate sends every prefix of the path as the gateway would.
func simulate(ctx context.Context, out io.Writer, engine *ussd.Engine, opts simulateOptions) error {
	if opts.sessionID == "" {
		opts.sessionID = uuid.NewString()
	}
	var tokens []string
	if opts.path != "" {
		tokens = strings.Split(opts.path, "*")
	}

	for i := 0; i <= len(tokens); i++ {
		text := strings.Join(tokens[:i], "*")
		reply := engine.Handle(ctx, ussd.Request{
			SessionID:   opts.sessionID,
			ServiceCode: "*384#",
			PhoneNumber: opts.phone,
			Text:        text,
		})
		if _, err := fmt.Fprintf(out, "> %q\n%s\n\n", text, reply.String()); err != nil {
			return err
		}
		if reply.End {
			if i < len(tokens) {
				_, err := fmt.Fprintf(out, "(session ended, %d keys not sent)\n", len(tokens)-i)
				return err
			}
			break
		}
	}
	return nil
}

// offlineBackend serves canned data for simulations without a backend.
type offlineBackend struct{}

var offlineTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

var offlineEmergencies = []models.Emergency{
	{ID: "6f1c2d3e-0001", Type: "fire", Status: "PENDING", Priority: "HIGH", Address: "Kimironko, Kigali",
		CreatedAt: &offlineTime, User: &models.User{FirstName: "Aline", LastName: "Mukamana", PhoneNumber: "+250788100200"}},
	{ID: "6f1c2d3e-0002", Type: "medical", Status: "IN_PROGRESS", Priority: "MEDIUM", Address: "Remera"},
}

var offlinePosts = []models.Post{
	{ID: "p-1", Title: "Flood warning for low-lying areas", Content: "Heavy rain is expected tonight. Move valuables to higher ground.",
		Author: "Rwanda Meteorology", CreatedAt: &offlineTime},
	{ID: "p-2", Title: "First aid training", Content: "Free training at the sector office on Saturday.", Category: "event"},
}

func (offlineBackend) ReportEmergency(context.Context, models.EmergencyReport) (models.Created, error) {
	return models.Created{ID: uuid.NewString()}, nil
}

func (offlineBackend) GetEmergencies(context.Context, models.ListFilter) (backend.EmergencyPage, error) {
	return backend.EmergencyPage{Emergencies: offlineEmergencies, Total: len(offlineEmergencies)}, nil
}

func (offlineBackend) GetEmergencyByID(_ context.Context, id string) (models.Emergency, error) {
	for _, e := range offlineEmergencies {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Emergency{}, backend.ErrNotFound
}

func (offlineBackend) GetUserEmergencies(context.Context, string) (backend.EmergencyPage, error) {
	return backend.EmergencyPage{Emergencies: offlineEmergencies[:1], Total: 1}, nil
}

func (offlineBackend) TriggerDistress(context.Context, models.DistressAlert) (models.Created, error) {
	return models.Created{ID: uuid.NewString()}, nil
}

func (offlineBackend) GetPosts(_ context.Context, filter models.ListFilter) (backend.PostPage, error) {
	if filter.Category == "" {
		return backend.PostPage{Posts: offlinePosts, Total: len(offlinePosts)}, nil
	}
	var out []models.Post
	for _, p := range offlinePosts {
		if p.Category == filter.Category {
			out = append(out, p)
		}
	}
	return backend.PostPage{Posts: out, Total: len(out)}, nil
}

func (offlineBackend) GetPostByID(_ context.Context, id string) (models.Post, error) {
	for _, p := range offlinePosts {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Post{}, backend.ErrNotFound
}
