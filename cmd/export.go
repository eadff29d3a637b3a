package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"magpie/internal/pkg/kv"
	"magpie/internal/store"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured conversations to a JSON file",
	Long:  `Export all persisted conversations as a versioned JSON blob.`,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ctx := context.Background()

	kvStore, err := kv.Open(ctx, &cfg.KV)
	if err != nil {
		return fmt.Errorf("failed to open kv store: %w", err)
	}
	defer func() {
		if err := kvStore.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close kv store")
		}
	}()

	convStore := store.New(kvStore, cfg.KV.Budget)

	export, err := convStore.Export(ctx)
	if err != nil {
		return fmt.Errorf("failed to export conversations: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	if exportOutput == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	log.Info().
		Str("file", exportOutput).
		Int("conversations", export.TotalConversations).
		Msg("conversations exported")

	return nil
}
