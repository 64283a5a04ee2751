package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DevArk-AI/devark/internal/adapters"
	"github.com/DevArk-AI/devark/internal/api"
	"github.com/DevArk-AI/devark/internal/coaching"
	"github.com/DevArk-AI/devark/internal/config"
	"github.com/DevArk-AI/devark/internal/cursordb"
	"github.com/DevArk-AI/devark/internal/pathfilter"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/runtime"
	"github.com/DevArk-AI/devark/internal/scoring"
	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/internal/store"
	"github.com/DevArk-AI/devark/internal/summary"
	"github.com/DevArk-AI/devark/internal/tokenstore"
	"github.com/DevArk-AI/devark/internal/transcript"
	"github.com/DevArk-AI/devark/internal/upload"
	"github.com/DevArk-AI/devark/internal/worker"
	"github.com/DevArk-AI/devark/pkg/models"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the sidecar worker",
	Long: `Start the local worker: watch prompt sources, score prompts, generate
coaching, and serve the webview API on localhost.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	db, err := store.NewStore(store.Config{Path: config.DBPath(), MaxConns: cfg.MaxConns})
	if err != nil {
		return err
	}
	defer db.Close()

	filter := pathfilter.New(append(pathfilter.DefaultIgnorePatterns, cfg.IgnorePatterns...))
	svc := sessions.New(transcript.NewReader(), cursordb.NewReader(), filter)
	stateStore := state.NewStore()

	var provider scoring.Provider
	var suggester coaching.Suggester
	if cfg.AnthropicKey != "" {
		anthropicProvider := scoring.NewAnthropicProvider(cfg.AnthropicKey, cfg.Model)
		provider = anthropicProvider
		suggester = &coaching.AnthropicSuggester{Complete: anthropicProvider.Complete}
	} else {
		log.Warn().Msg("No Anthropic key configured, using heuristic scoring")
		provider = scoring.NewHeuristicProvider()
	}
	orchestrator := scoring.NewOrchestrator(provider, stateStore)
	coach := coaching.NewService(suggester)

	rt := runtime.New(runtime.Config{
		History:      db,
		State:        stateStore,
		Analyzer:     orchestrator,
		Coach:        coach,
		Index:        svc,
		PollInterval: cfg.PollInterval,
	})

	adapterSet := []adapters.Adapter{
		adapters.NewClaudeHookAdapter(adapters.ClaudeHookConfig{
			PollInterval: cfg.PollInterval,
			Filter:       filter,
		}),
		adapters.NewCursorAdapter(adapters.CursorConfig{
			PollInterval: cfg.PollInterval,
			Filter:       filter,
		}),
	}
	for _, a := range adapterSet {
		a.OnPrompt(func(dp models.DetectedPrompt) {
			rt.HandlePrompt(ctx, dp)
		})
		a.OnStatusChange(func(status adapters.Status) {
			stateStore.Dispatch(state.AdapterStatusChanged{SourceID: a.Source().ID, Status: status})
		})
		if !a.Initialize() {
			log.Warn().Str("source", a.Source().ID).Msg("Adapter unavailable")
			continue
		}
		if err := a.Start(); err != nil {
			log.Warn().Err(err).Str("source", a.Source().ID).Msg("Adapter failed to start")
		}
	}
	defer func() {
		for _, a := range adapterSet {
			a.Stop()
			a.Dispose()
		}
	}()

	tokens := tokenstore.NewFileStore(paths.DevarkDir())
	client := api.NewClient(cfg.BaseURL, tokens)
	pipeline := upload.NewPipeline(upload.NewEngine(client), svc, db, stateStore)

	if tokens.HasToken() {
		go verifyLogin(ctx, client, stateStore)
	}

	server := worker.NewServer(worker.Config{
		Port:      cfg.WorkerPort,
		State:     stateStore,
		Sessions:  svc,
		Summaries: summary.NewGenerator(db),
		Coaching:  coach,
		Upload:    pipeline.Run,
		Version:   Version,
	})

	log.Info().Int("port", cfg.WorkerPort).Str("version", Version).Msg("Worker starting")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Start(ctx) })
	group.Go(func() error { return rt.Start(ctx) })
	return group.Wait()
}

// verifyLogin checks the stored token against the backend and reflects the
// result in worker state. Network trouble leaves auth state untouched.
func verifyLogin(ctx context.Context, client *api.Client, st *state.Store) {
	verification, err := client.VerifyAuth(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Auth verification failed")
		return
	}
	st.Dispatch(state.SetAuthStatus{LoggedIn: verification.IsValid()})
}
