package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pl-listing/lister/internal/results"
)

func newReviewCmd() *cobra.Command {
	var onlyPending bool

	cmd := &cobra.Command{
		Use:   "review FILE",
		Short: "Show review decisions for an exported result table",
		Long: `Reloads a YAML result table written by "lister run --yaml" and recomputes
each product's review decision from its brand and size.

Edited brand or size values are picked up, so a product fixed by hand
moves from needs-review to auto-approved on the next review.`,
		Example: `  # Show every product
  lister review out/results.yaml

  # Only products that still need a human check
  lister review out/results.yaml --pending`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			export, err := results.LoadYAML(args[0])
			if err != nil {
				return err
			}
			printReview(export, onlyPending)
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyPending, "pending", false, "Only list products that need review")

	return cmd
}

func printReview(export *results.Export, onlyPending bool) {
	var approved, pending, failed int

	fmt.Println("========================================")
	fmt.Printf("Review: run %s (%s/%s)\n", export.Config.RunID, export.Config.Provider, export.Config.Model)
	fmt.Println("========================================")
	for _, row := range export.Rows {
		d, ok := row.Review()
		switch {
		case !ok:
			failed++
			if !onlyPending {
				fmt.Printf("  %s  FAILED  %s\n", row.ProductID, row.Error)
			}
		case d.AutoApproved:
			approved++
			if !onlyPending {
				fmt.Printf("  %s  OK      brand=%s size=%s\n", row.ProductID, row.Brand, row.Size)
			}
		default:
			pending++
			fmt.Printf("  %s  REVIEW  %s\n", row.ProductID, strings.Join(d.Reasons, ", "))
		}
	}
	fmt.Println()
	fmt.Printf("Auto-approved:      %d\n", approved)
	fmt.Printf("Needs review:       %d\n", pending)
	fmt.Printf("Failed:             %d\n", failed)
	fmt.Println("========================================")
}
