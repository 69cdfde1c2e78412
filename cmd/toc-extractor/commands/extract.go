package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexatlas/toc-extractor/cmd/toc-extractor/ui"
	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/extract"
	"github.com/lexatlas/toc-extractor/internal/llm"
	"github.com/lexatlas/toc-extractor/internal/pdf"
)

var (
	extractPDFPath  string
	extractURL      string
	extractOutput   string
	extractMaxPages int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the table of contents from a PDF document",
	Long: `Extract renders the leading pages of a PDF document, asks the configured
language model for the table of contents, and saves the result.

The document comes from a local file (--pdf) or a URL (--url).`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractPDFPath, "pdf", "p", "", "path to a local PDF file")
	extractCmd.Flags().StringVarP(&extractURL, "url", "u", "", "URL of a PDF document to download")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output path for the extracted TOC")
	extractCmd.Flags().IntVarP(&extractMaxPages, "max-pages", "m", 0, "maximum number of pages to analyze")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if (extractPDFPath == "") == (extractURL == "") {
		return fmt.Errorf("exactly one of --pdf or --url is required")
	}

	maxPages := extractMaxPages
	if maxPages <= 0 {
		maxPages = cfg.PDF.MaxPages
	}
	outputPath := extractOutput
	if outputPath == "" {
		outputPath = extract.DefaultSinkPath(cfg.PDF.OutputDir)
	}

	ui.Section("TOC Extraction")
	if extractPDFPath != "" {
		if err := pdf.ValidatePDFPath(extractPDFPath); err != nil {
			return err
		}
		ui.KeyValue("PDF file", extractPDFPath)
	} else {
		ui.KeyValue("PDF URL", extractURL)
	}
	ui.KeyValue("Output file", outputPath)
	ui.KeyValue("Max pages", strconv.Itoa(maxPages))
	ui.Newline()

	rasterizer := pdf.NewRasterizer(cfg.PDF.RenderWorkers, logger)
	gateway := llm.NewClient(cfg.OpenAI, logger)
	service := extract.NewService(rasterizer, gateway, logger,
		extract.WithFetcher(extract.NewFetcher(logger)))

	spinner := ui.NewSpinner("Analyzing document pages...")
	spinner.Start()

	var (
		result     *domain.ExtractionResult
		outputFile string
		err        error
	)
	started := time.Now()
	if extractPDFPath != "" {
		result, outputFile, err = service.ExtractFromPath(ctx, extractPDFPath, maxPages, outputPath)
	} else {
		result, outputFile, err = service.ExtractFromURL(ctx, extractURL, maxPages, outputPath)
	}
	spinner.Stop()

	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if result.Error {
		ui.Warning("Extraction finished with an error: %s", result.ErrorMessage)
	} else {
		ui.Success("Extraction completed in %s", ui.FormatDuration(time.Since(started)))
	}
	ui.Newline()

	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"TOC entries", strconv.Itoa(len(result.TOCEntries))},
		{"Section headers", strconv.Itoa(len(result.SectionHeaders))},
		{"Saved to", outputFile},
	})

	if verbose {
		ui.Newline()
		for _, entry := range result.TOCEntries {
			ui.Verbose("%s", entry.RawText)
		}
	}

	return nil
}
