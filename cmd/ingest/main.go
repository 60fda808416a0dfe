package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v3"

	"github.com/toefl-tutor-core/server/internal/agent/model"
	"github.com/toefl-tutor-core/server/internal/core"
	"github.com/toefl-tutor-core/server/internal/ingest"
	"github.com/toefl-tutor-core/server/internal/knowledge"
	"github.com/toefl-tutor-core/server/internal/llm"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var (
		storePath   string
		idColumn    string
		batchSize   int
		textColumns []string
	)

	cmd := &cli.Command{
		Name:      "ingest",
		Usage:     "Embed a tutoring example dataset into the local embedding store",
		ArgsUsage: "<dataset.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "store",
				Usage:       "Path of the embedding store snapshot",
				Value:       "data/embedding_store.json",
				Sources:     cli.EnvVars("STORE_PATH"),
				Destination: &storePath,
			},
			&cli.StringFlag{
				Name:        "id-column",
				Usage:       "Dataset column holding a stable record id (positional ids are used when empty)",
				Destination: &idColumn,
			},
			&cli.IntFlag{
				Name:        "batch-size",
				Usage:       "Records embedded per store write",
				Value:       100,
				Destination: &batchSize,
			},
			&cli.StringSliceFlag{
				Name:        "text-columns",
				Usage:       "Columns combined into the embedded document (defaults to the modelling dataset columns)",
				Destination: &textColumns,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			dataset := c.Args().First()
			if dataset == "" {
				return fmt.Errorf("dataset path is required")
			}

			var embedderCfg model.EmbedderConfig
			if err := envconfig.Process("", &embedderCfg); err != nil {
				return fmt.Errorf("process environment config: %w", err)
			}

			embedder, err := llm.NewEmbedder(ctx, embedderCfg)
			if err != nil {
				return fmt.Errorf("initialise embedder: %w", err)
			}

			store, err := knowledge.Open(storePath, embedder)
			if err != nil {
				return fmt.Errorf("open embedding store: %w", err)
			}

			pipeline := ingest.New(store, embedder,
				ingest.WithTextColumns(textColumns),
				ingest.WithIDColumn(idColumn),
				ingest.WithBatchSize(batchSize),
			)

			report, err := pipeline.Run(ctx, dataset)
			// Print whatever was counted even on a fatal failure; partial
			// progress is already persisted and re-runs are idempotent.
			fmt.Println("--- Ingestion Report ---")
			fmt.Println(report.String())
			if err != nil {
				return err
			}
			fmt.Printf("Store now holds %d entries at %s\n", store.Len(), storePath)
			return nil
		},
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("ENVIRONMENT"))})

	if err := cmd.Run(ctx, args); err != nil {
		logx.Error().Err(err).Msg("Ingestion failed")
		return err
	}
	return nil
}
