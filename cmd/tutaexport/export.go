package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutaexport/tutaexport"
)

var (
	exportFolder      string
	exportOutputDir   string
	exportConcurrency int
	exportLimit       int
	exportDryRun      bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every mail in a folder to local .eml files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFolder == "" {
			return fmt.Errorf("--folder is required")
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		opts := []tutaexport.ExportOption{
			tutaexport.WithDryRun(exportDryRun),
		}
		if exportConcurrency > 0 {
			opts = append(opts, tutaexport.WithConcurrency(exportConcurrency))
		}
		if exportLimit > 0 {
			opts = append(opts, tutaexport.WithExportPageLimit(exportLimit))
		}

		summary, err := client.Export(cmd.Context(), exportFolder, exportOutputDir, opts...)
		if err != nil {
			return err
		}

		logger.Info().
			Int("exported", summary.Exported).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Msg("export finished")
		for _, reason := range summary.FailedReasons {
			logger.Warn().Msg(reason)
		}

		if summary.HadFailures() {
			return &partialExportError{summary: summary}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFolder, "folder", "", "folder display name to export (required)")
	exportCmd.Flags().StringVar(&exportOutputDir, "output-dir", "./out", "directory to write .eml files into")
	exportCmd.Flags().IntVar(&exportConcurrency, "concurrency", 0, "pipeline fan-out (default 8)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "paginator page size (default 1000)")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "count mails without writing files")
	rootCmd.AddCommand(exportCmd)
}
