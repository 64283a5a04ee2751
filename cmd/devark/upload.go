package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/api"
	"github.com/DevArk-AI/devark/internal/config"
	"github.com/DevArk-AI/devark/internal/cursordb"
	"github.com/DevArk-AI/devark/internal/pathfilter"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/internal/store"
	"github.com/DevArk-AI/devark/internal/tokenstore"
	"github.com/DevArk-AI/devark/internal/transcript"
	"github.com/DevArk-AI/devark/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload pending sessions to the backend",
	Long: `Collect sessions that were never uploaded, sanitize them, and push them
to the backend in size-capped batches.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	tokens := tokenstore.NewFileStore(paths.DevarkDir())
	if !tokens.HasToken() {
		return fmt.Errorf("not logged in, run `devark login` first")
	}

	db, err := store.NewStore(store.Config{Path: config.DBPath(), MaxConns: cfg.MaxConns})
	if err != nil {
		return err
	}
	defer db.Close()

	svc := sessions.New(transcript.NewReader(), cursordb.NewReader(), pathfilter.New(append(pathfilter.DefaultIgnorePatterns, cfg.IgnorePatterns...)))
	client := api.NewClient(cfg.BaseURL, tokens)
	pipeline := upload.NewPipeline(upload.NewEngine(client), svc, db, nil)

	result, err := pipeline.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	fmt.Printf("Uploaded %d session(s), %d duplicate(s).\n", result.Created, result.Duplicates)
	if result.Streak > 0 {
		fmt.Printf("Streak: %d day(s).\n", result.Streak)
	}
	if result.AnalysisPreview != "" {
		fmt.Println(result.AnalysisPreview)
	}
	return nil
}
