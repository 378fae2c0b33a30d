package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/config"
	"github.com/pl-listing/lister/internal/grouping"
	"github.com/pl-listing/lister/internal/models"
	"github.com/pl-listing/lister/internal/results"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		dir         string
		yamlPath    string
		parquetPath string
		provider    string
		model       string
		hints       models.Hints
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify a directory of product photos",
		Long: `Scans a directory for product photos, groups them by management number,
classifies each product in turn and prints the result table summary.

Products are processed one at a time with a fixed delay between requests.
A failed product never stops the batch; it is reported in the table instead.`,
		Example: `  # Classify every product under ./photos
  lister run --dir ./photos

  # Export the result table and hint the brand
  lister run --dir ./photos --brand BEAMS --yaml out/results.yaml --parquet out/results.parquet

  # Use a local Ollama model
  lister run --dir ./photos --provider ollama --model llava`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(func(c *config.Config) {
				if provider != "" {
					c.Provider = strings.ToLower(provider)
				}
				if model != "" {
					c.Model = model
				}
			})
			if err != nil {
				return err
			}

			files, err := grouping.ScanDir(dir)
			if err != nil {
				return err
			}
			res, err := grouping.NewGrouper(cfg.Images.MaxFiles).Group(files)
			if errors.Is(err, grouping.ErrNoImages) {
				return fmt.Errorf("no images found in %s: %w", dir, err)
			}
			if err != nil {
				return err
			}
			slog.Info("Grouped images", "dir", dir, "products", len(res.Groups), "files", res.Accepted, "skipped_files", res.Dropped())

			classifier, err := cfg.NewClassifier()
			if err != nil {
				return err
			}
			categories, err := cfg.Categories()
			if err != nil {
				return err
			}

			tracker := batch.NewTracker(uuid.NewString(), len(res.Groups))
			tracker.Subscribe(printProgress())

			orch := batch.NewOrchestrator(cfg.Normalizer(), classifier,
				batch.WithDelay(cfg.Delay),
				batch.WithHints(hints),
			)
			summary, err := orch.Run(cmd.Context(), res.Groups, tracker)
			if err != nil {
				return err
			}

			table := results.NewProjector(categories, cfg.Marketplace).Project(tracker.Snapshot())
			printRunSummary(summary, table, res.Dropped())

			if yamlPath != "" {
				if err := results.SaveYAML(yamlPath, table, cfg.Provider, cfg.ModelName()); err != nil {
					return err
				}
				fmt.Printf("\nResults saved to: %s\n", yamlPath)
				fmt.Printf("\nRecheck review flags with:\n")
				fmt.Printf("  lister review %s\n", yamlPath)
			}
			if parquetPath != "" {
				if err := results.WriteParquet(parquetPath, table); err != nil {
					return err
				}
				fmt.Printf("Parquet table saved to: %s\n", parquetPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory containing product photos")
	cmd.Flags().StringVar(&yamlPath, "yaml", "", "Write the result table as YAML to this path")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Write the result table as Parquet to this path")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openai, gemini or ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to provider's default)")
	cmd.Flags().StringVar(&hints.Brand, "brand", "", "Brand hint")
	cmd.Flags().StringVar(&hints.ModelNumber, "model-number", "", "Model number hint")
	cmd.Flags().StringVar(&hints.Size, "size", "", "Size hint")
	cmd.Flags().StringVar(&hints.ProductType, "product-type", "", "Product type hint")
	cmd.Flags().StringVar(&hints.Color, "color", "", "Color hint")
	cmd.Flags().BoolVar(&hints.HasScale, "has-scale", false, "Photos include a measuring scale")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

// printProgress prints one line per newly recorded product.
func printProgress() batch.Observer {
	printed := 0
	return func(snap batch.Snapshot) {
		for _, e := range snap.Entries[printed:] {
			status := string(e.Outcome.Kind)
			if !e.Outcome.Succeeded() {
				status += ": " + e.Outcome.Reason
			}
			fmt.Printf("[%d/%d] %s %s\n", printed+1, snap.Total, e.ProductID, status)
			printed++
		}
	}
}

func printRunSummary(summary batch.Summary, table results.Table, skipped int) {
	fmt.Println("\n========================================")
	fmt.Println("Batch Summary")
	fmt.Println("========================================")
	fmt.Printf("Run ID:             %s\n", table.RunID)
	fmt.Printf("Products:           %s\n", summary.Progress())
	fmt.Printf("Succeeded:          %d (partial %d)\n", summary.Succeeded, summary.Partial)
	fmt.Printf("Failed:             %d\n", summary.Failed)
	fmt.Printf("Auto-approved:      %d\n", summary.AutoApproved)
	fmt.Printf("Needs review:       %d\n", summary.NeedsReview)
	fmt.Printf("Skipped files:      %d\n", skipped)
	fmt.Printf("Duration:           %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Println()

	for _, row := range table.Rows {
		switch {
		case row.Failed():
			fmt.Printf("  %s  FAILED  %s\n", row.ProductID, row.Error)
		case !row.AutoApproved:
			fmt.Printf("  %s  REVIEW  %s (%s)\n", row.ProductID, row.ListingTitle, strings.Join(row.ReviewReasons, ", "))
		default:
			fmt.Printf("  %s  OK      %s [%s]\n", row.ProductID, row.ListingTitle, row.Category)
		}
	}
	fmt.Println("========================================")
}
