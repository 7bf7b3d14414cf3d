package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smartrab/internal"
	"smartrab/internal/mailbox"
	"smartrab/internal/pipeline"
	"smartrab/internal/pricebook"
	"smartrab/internal/watcher"
)

func ingestCmd(e *env) *cobra.Command {
	var mode string
	var workers int
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Parse files or directories and merge them into the price list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := withOverrides(e.options(), mode, workers)
			if err != nil {
				return err
			}
			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no supported files found")
			}
			db, err := e.store()
			if err != nil {
				return err
			}

			batch, err := pipeline.NewIngestionService(db, e.classifier, opts, e.log).IngestBatch(cmd.Context(), paths)
			printBatch(batch)
			if err != nil {
				return err
			}
			entries, merged, err := pricebook.Sync(cmd.Context(), db, batch)
			if err != nil {
				return err
			}
			fmt.Printf("ingest done run=%s files=%d failed=%d rows=%d items=%d merged=%d price_list=%d\n",
				batch.RunID, len(batch.Files), batch.Failed(), len(batch.Rows()), len(batch.Items()), merged, len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "table|items|auto (default INGEST_MODE)")
	cmd.Flags().IntVar(&workers, "workers", 0, "files parsed in parallel (default INGEST_WORKERS)")
	return cmd
}

func inspectCmd(e *env) *cobra.Command {
	var mode string
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Show how a file is parsed without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := withOverrides(e.options(), mode, 0)
			if err != nil {
				return err
			}
			svc := pipeline.NewIngestionService(nil, e.classifier, opts, e.log)
			for _, res := range svc.IngestFile(cmd.Context(), args[0]) {
				printResult(res)
				if res.Err != nil {
					continue
				}
				for i, row := range res.Rows {
					if i == limit {
						break
					}
					fmt.Printf("  line %d: %v\n", row.LineNo, row.Map())
				}
				for i, item := range res.Items {
					if i == limit {
						break
					}
					fmt.Printf("  line %d: %v\n", item.LineNo, item.Map())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "table|items|auto (default INGEST_MODE)")
	cmd.Flags().IntVar(&limit, "rows", 5, "rows to print per record")
	return cmd
}

func extractCmd(e *env) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract priced work items from one file into an xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
				return errors.New("--input and --output are required")
			}
			opts := e.options()
			opts.Mode = internal.ModeItems
			svc := pipeline.NewIngestionService(nil, e.classifier, opts, e.log)

			var items []internal.PricedItem
			for _, res := range svc.IngestFile(cmd.Context(), input) {
				if res.Err != nil {
					return res.Err
				}
				items = append(items, res.Items...)
			}
			if err := pipeline.ExportItemsToXLSX(items, output); err != nil {
				return err
			}
			fmt.Printf("exported %d items to %s\n", len(items), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "input file")
	cmd.Flags().StringVar(&output, "output", "", "output xlsx path")
	return cmd
}

func exportCmd(e *env) *cobra.Command {
	var out, category string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the master price list and category breakdown to xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(out) == "" {
				return errors.New("--out is required")
			}
			db, err := e.store()
			if err != nil {
				return err
			}
			entries, err := db.ListPriceList(cmd.Context(), category)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("price list is empty (category=%q)", category)
			}
			if err := pipeline.ExportPriceList(entries, pricebook.Summarize(entries), out); err != nil {
				return err
			}
			fmt.Printf("exported %d entries to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	return cmd
}

func searchCmd(e *env) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Look up a work item or material in the price list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.store()
			if err != nil {
				return err
			}
			entries, err := db.ListPriceList(cmd.Context(), category)
			if err != nil {
				return err
			}
			searcher := pricebook.NewSearcher(entries, e.cfg.SearchOKThreshold, e.cfg.SearchReviewThreshold)
			res := searcher.Search(strings.Join(args, " "))

			fmt.Printf("query=%q status=%s confidence=%.2f reason=%s\n", res.Query, res.Status, res.Confidence, res.Reason)
			for _, c := range res.Candidates {
				fmt.Printf("  %.3f  %s  %-20s %-40s %8s %14.2f\n", c.Score, c.Entry.ID, c.Entry.Category, c.Entry.Description, c.Entry.Unit, c.Entry.Price)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	return cmd
}

func runsCmd(e *env) *cobra.Command {
	var limit int
	var files bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.store()
			if err != nil {
				return err
			}
			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			lastExport, err := db.GetMetadata(watcher.MetaLastExport)
			if err != nil {
				return err
			}
			if lastExport != nil {
				fmt.Printf("last price list export: %s\n", *lastExport)
			}
			for _, r := range runs {
				finished := "running"
				if r.FinishedAt != nil {
					finished = *r.FinishedAt
				}
				fmt.Printf("%s mode=%s started=%s finished=%s files=%d failed=%d accepted=%d\n",
					r.ID, r.Mode, r.StartedAt, finished, r.Files, r.Failed, r.Accepted)
				if !files {
					continue
				}
				rows, err := db.ListFiles(cmd.Context(), r.ID)
				if err != nil {
					return err
				}
				for _, f := range rows {
					status := "ok"
					if f.Error != "" {
						status = "error: " + f.Error
					}
					fmt.Printf("  %-40s mode=%s header=%d accepted=%d %s\n", f.Name, f.Mode, f.HeaderRow, f.Accepted, status)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "runs to show")
	cmd.Flags().BoolVar(&files, "files", false, "show per-file reports")
	return cmd
}

func watchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll INPUT_DIR (and the mailbox when configured) until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.store()
			if err != nil {
				return err
			}
			var fetcher *mailbox.Fetcher
			if e.cfg.IMAPEnabled() {
				src, err := mailbox.NewIMAPSource(e.cfg)
				if err != nil {
					return err
				}
				fetcher = mailbox.NewFetcher(src, e.cfg.MailDir, e.log)
			}
			svc := pipeline.NewIngestionService(db, e.classifier, e.options(), e.log)
			return watcher.NewService(db, svc, fetcher, e.cfg, e.log).Run(cmd.Context())
		},
	}
}

func mailFetchCmd(e *env) *cobra.Command {
	var label string
	var max int
	cmd := &cobra.Command{
		Use:   "mail:fetch",
		Short: "Fetch unseen IMAP messages and ingest their attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := mailbox.NewIMAPSource(e.cfg)
			if err != nil {
				return err
			}
			res, err := mailbox.NewFetcher(src, e.cfg.MailDir, e.log).FetchAndStore(label, max)
			if err != nil {
				return err
			}
			fmt.Printf("mail fetch done label=%s fetched=%d stored=%d\n", label, res.Fetched, res.Stored)
			if len(res.Paths) == 0 {
				return nil
			}

			db, err := e.store()
			if err != nil {
				return err
			}
			batch, err := pipeline.NewIngestionService(db, e.classifier, e.options(), e.log).IngestBatch(cmd.Context(), res.Paths)
			printBatch(batch)
			if err != nil {
				return err
			}
			_, merged, err := pricebook.Sync(cmd.Context(), db, batch)
			if err != nil {
				return err
			}
			fmt.Printf("mail ingest done run=%s files=%d failed=%d merged=%d\n", batch.RunID, len(batch.Files), batch.Failed(), merged)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", e.cfg.MailLabel, "mailbox folder")
	cmd.Flags().IntVar(&max, "max", e.cfg.MailFetchMax, "max messages")
	return cmd
}

func withOverrides(opts pipeline.Options, mode string, workers int) (pipeline.Options, error) {
	switch internal.IngestMode(mode) {
	case "":
	case internal.ModeTable, internal.ModeItems, internal.ModeAuto:
		opts.Mode = internal.IngestMode(mode)
	default:
		return opts, fmt.Errorf("invalid --mode %q: want table|items|auto", mode)
	}
	if workers > 0 {
		opts.Workers = workers
	}
	return opts, nil
}

// expandPaths keeps files named explicitly and walks directories for
// supported files.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		found, err := watcher.Scan(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func printBatch(batch internal.BatchResult) {
	for _, res := range batch.Files {
		printResult(res)
	}
}

func printResult(res internal.FileResult) {
	if res.Err != nil {
		fmt.Printf("%-40s error: %v\n", res.File, res.Err)
		return
	}
	line := fmt.Sprintf("%-40s mode=%s encoding=%s delimiter=%q header=%d accepted=%d columns=%s",
		res.File, res.Mode, res.Encoding, string(res.Delimiter), res.HeaderRow, res.Accepted(), strings.Join(res.Columns, ","))
	if res.Category != "" {
		line += " category=" + res.Category
	}
	if res.Diagnostic != "" {
		line += " diagnostic=" + res.Diagnostic
	}
	fmt.Println(line)
}
