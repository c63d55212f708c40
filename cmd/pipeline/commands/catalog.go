package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vialaky/ProductImagePipeline/cmd/pipeline/ui"
	"github.com/vialaky/ProductImagePipeline/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List and validate the configured SKU catalog",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ui.Init(noColor, verbose)

	cat, err := cfg.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ui.Section("Catalog")
	rows := make([][]string, 0, cat.Len())
	for _, t := range cat.SKUs {
		rows = append(rows, []string{t.SKU, string(t.ArchiveKind), t.Category, t.SourceURL})
	}
	ui.Table([]string{"SKU", "KIND", "CATEGORY", "SOURCE"}, rows)
	ui.Success("%d SKUs, catalog is valid", cat.Len())
	return nil
}
