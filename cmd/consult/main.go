package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/gateway/config"
	"structai/internal/gateway/repository/slot"
	"structai/internal/history"
	"structai/internal/llm"
	"structai/internal/tui"
)

func main() {
	historyDir := flag.String("history", "data/history", "directory for the local analysis history")
	provider := flag.String("llm", "", "override the model provider (gemini, openrouter, fake)")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	verbose := flag.Bool("v", false, "log model calls to stderr")
	flag.Parse()

	_ = godotenv.Load()

	// Log lines would tear the alternate screen, so they are off by default.
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "consult: ", log.LstdFlags)
	}

	ctx := context.Background()
	opts := config.LoadLLM()
	if *provider != "" {
		opts.Provider = *provider
	}
	opts.Logger = logger
	clients, err := llm.New(ctx, opts)
	if err != nil {
		fmt.Println("failed to initialize model client:", err)
		os.Exit(1)
	}
	defer clients.Close()

	slots, err := slot.NewFileStore(*historyDir)
	if err != nil {
		fmt.Println("failed to open history directory:", err)
		os.Exit(1)
	}
	store, err := history.Open(ctx, slots, history.DefaultSlot)
	if err != nil {
		fmt.Println("failed to load history:", err)
		os.Exit(1)
	}

	runner, err := analysis.NewLLMRunner(clients.LLM, nil)
	if err != nil {
		fmt.Println("failed to load prompts:", err)
		os.Exit(1)
	}

	programOpts := []tea.ProgramOption{}
	if !*noAltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Pipeline:    analysis.NewPipeline(runner, logger),
			Chatter:     clients.LLM,
			History:     store,
			ChatOptions: []chat.Option{chat.WithLogger(logger)},
		}),
		programOpts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}
