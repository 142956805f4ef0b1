package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/engineering"
	"structai/internal/gateway/config"
	"structai/internal/gateway/handler"
	"structai/internal/gateway/server"
	"structai/internal/history"
	"structai/internal/llm"
	"structai/internal/prompt"
	"structai/internal/speech"
)

type App struct {
	server  *server.Server
	clients *llm.Clients
	stores  *gatewayStores
}

func New(ctx context.Context, args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg.LLM.Logger = logger
	clients, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to init llm: %w", err)
	}
	log.Printf("llm provider: %s", clients.LLM.Name())

	stores, err := initStores(ctx, cfg)
	if err != nil {
		_ = clients.Close()
		return nil, err
	}

	deps, err := buildDeps(cfg, clients, stores, logger)
	if err != nil {
		_ = stores.Close()
		_ = clients.Close()
		return nil, err
	}
	srv := server.New(cfg.Port, server.NewMux(handler.New(deps)))

	return &App{server: srv, clients: clients, stores: stores}, nil
}

func buildDeps(cfg *config.Config, clients *llm.Clients, stores *gatewayStores, logger *log.Logger) (handler.Deps, error) {
	catalog, err := prompt.Default()
	if err != nil {
		return handler.Deps{}, err
	}
	runner, err := analysis.NewLLMRunner(clients.LLM, catalog)
	if err != nil {
		return handler.Deps{}, err
	}
	registry, err := history.NewRegistry(stores.slots, cfg.History.CacheSize)
	if err != nil {
		return handler.Deps{}, err
	}

	var narrator *speech.Narrator
	if clients.Speech != nil {
		narrator = speech.NewNarrator(clients.Speech, stores.audio, logger)
	}
	chatOpts := []chat.Option{
		chat.WithCatalog(catalog),
		chat.WithErrorMessage(cfg.Chat.ErrorMessage),
		chat.WithLogger(logger),
	}
	if cfg.Chat.Narrate && narrator != nil {
		chatOpts = append(chatOpts, chat.WithNarrator(narrator))
	}

	return handler.Deps{
		Pipeline: analysis.NewPipeline(runner, logger),
		Designer: engineering.NewDesigner(clients.LLM, catalog),
		Tutor:    engineering.NewTutor(clients.LLM, catalog),
		History:  registry,
		Chats:    chat.NewManager(clients.LLM, cfg.Chat.MaxSessions, cfg.Chat.SessionIdle, chatOpts...),
		Chatter:  clients.LLM,
		Catalog:  catalog,
		Narrator: narrator,
		Logger:   logger,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	_ = a.stores.Close()
	_ = a.clients.Close()
	return err
}
