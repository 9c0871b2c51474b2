// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/poiesic/stdgap"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/config"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/split"
	"github.com/poiesic/stdgap/web"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stdgap",
		Usage: "Find gaps in technical standards coverage from research findings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"STDGAP_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				Value:   "text",
				EnvVars: []string{"STDGAP_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file (defaults to the user config directory)",
				EnvVars: []string{"STDGAP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"STDGAP_DB"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding and chat services",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "OpenAI-compatible service URL used for both embeddings and chat",
				EnvVars: []string{"STDGAP_AI_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"STDGAP_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "chat-model",
				Usage:   "Chat model name used for analysis",
				EnvVars: []string{"STDGAP_CHAT_MODEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the web dashboard",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address (overrides server.addr)",
						EnvVars: []string{"STDGAP_ADDR"},
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Upload standards documents",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Force the document format (txt, md, pdf, docx, html)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Semantic search over stored sections",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results (defaults to analysis.search_k)",
					},
					&cli.Uint64Flag{
						Name:  "document",
						Usage: "Restrict the search to one document ID",
					},
				},
			},
			{
				Name:      "analyze",
				Usage:     "Identify gaps from research text",
				ArgsUsage: "[TEXT]",
				Action:    analyzeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "domain",
						Usage:    "Technology domain of the research",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "Research text to analyze",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read research text from a file, - for stdin",
					},
				},
			},
			{
				Name:      "recommend",
				Usage:     "Generate recommendations for a gap",
				ArgsUsage: "GAP_ID",
				Action:    recommendCommand,
			},
			{
				Name:   "gaps",
				Usage:  "List identified gaps, newest first",
				Action: gapsCommand,
			},
			{
				Name:   "documents",
				Usage:  "List uploaded documents",
				Action: documentsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show dashboard statistics",
				Action: statsCommand,
			},
			{
				Name:   "backfill",
				Usage:  "Embed sections that are missing vectors",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "document",
						Usage: "Only backfill one document ID",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N sections",
						Value: 10,
					},
				},
			},
			{
				Name:   "clear-gaps",
				Usage:  "Delete all gaps and recommendations",
				Action: clearGapsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
			},
			{
				Name:      "export",
				Usage:     "Write the workspace to a snapshot file",
				ArgsUsage: "PATH",
				Action:    exportCommand,
			},
			{
				Name:      "import",
				Usage:     "Load a snapshot file into an empty workspace",
				ArgsUsage: "PATH",
				Action:    importCommand,
			},
			{
				Name:   "init-config",
				Usage:  "Write a config file with the default settings",
				Action: initConfigCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}
	if c.IsSet("api-key") {
		cfg.AI.APIKey = c.String("api-key")
	}
	if c.IsSet("host") {
		cfg.AI.EmbeddingHost = c.String("host")
		cfg.AI.ChatHost = c.String("host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("chat-model") {
		cfg.AI.ChatModel = c.String("chat-model")
	}
	return cfg, nil
}

func openWorkspace(c *cli.Context) (*stdgap.Workspace, *config.AppConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	ws, err := stdgap.Open(cfg.Store.Path,
		stdgap.WithAIConfig(aiConfig),
		stdgap.WithSplitOptions(split.WithWindowSize(cfg.Splitter.WindowSize), split.WithMaxSectionChars(cfg.Splitter.MaxSectionChars)),
		stdgap.WithBatchOptions(ingestion.WithBatchSize(cfg.Ingest.BatchSize), ingestion.WithPoolSize(cfg.Ingest.PoolSize)),
		stdgap.WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes),
		stdgap.WithContextK(cfg.Analysis.ContextK),
		stdgap.WithNetworkThreshold(cfg.Analysis.NetworkThreshold),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace %s: %w", cfg.Store.Path, err)
	}
	return ws, cfg, nil
}

func serveCommand(c *cli.Context) error {
	ws, cfg, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(ws,
		web.WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes),
		web.WithSearchK(cfg.Analysis.SearchK),
	)
	slog.Info("serving dashboard", "addr", addr, "db", cfg.Store.Path)
	return server.ListenAndServe(ctx, addr, web.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Write:    cfg.Server.WriteTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	out := c.App.Writer
	var errs []error
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report, err := ws.Upload(c.Context, ingestion.Upload{
			Filename: filepath.Base(path),
			Format:   core.Format(strings.ToLower(c.String("format"))),
			Data:     data,
		})
		if report != nil {
			fmt.Fprintf(out, "%s: document %d, %d sections, %d embedded, status %s\n",
				path, report.Document.Id, len(report.Sections), report.Embedded, report.Document.Status)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return search.ErrEmptyQuery
	}
	ws, cfg, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	opts := search.Options{K: cfg.Analysis.SearchK, DocumentID: core.ID(c.Uint64("document"))}
	if c.IsSet("k") {
		opts.K = c.Int("k")
		if opts.K < 1 {
			return search.ErrInvalidK
		}
	}
	results, err := ws.Search(c.Context, query, opts)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches.")
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s / %s\n   %s\n", i+1, r.Score, r.Filename, r.Section.DisplayLabel(), r.Snippet)
	}
	return nil
}

func analyzeCommand(c *cli.Context) error {
	text, err := researchText(c)
	if err != nil {
		return err
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	result, err := ws.Analyze(c.Context, analysis.Request{ResearchText: text, Domain: c.String("domain")})
	if result == nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Analysis %s: %d gaps from %d standard sections\n", result.AnalysisId, len(result.Gaps), len(result.Context))
	printGaps(c.App.Writer, result.Gaps)
	return err
}

// researchText takes the research from --text, --file (- for stdin) or
// the arguments.
func researchText(c *cli.Context) (string, error) {
	if c.IsSet("text") {
		return c.String("text"), nil
	}
	switch path := c.String("file"); path {
	case "":
		return strings.Join(c.Args().Slice(), " "), nil
	case "-":
		data, err := io.ReadAll(c.App.Reader)
		return string(data), err
	default:
		data, err := os.ReadFile(path)
		return string(data), err
	}
}

func recommendCommand(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	recs, err := ws.Recommend(c.Context, id)
	out := c.App.Writer
	for _, rec := range recs {
		fmt.Fprintf(out, "%s (%s)\n  Proposed: %s\n  Rationale: %s\n", rec.Title, rec.Difficulty, rec.ProposedText, rec.Rationale)
		if len(rec.References) > 0 {
			fmt.Fprintf(out, "  References: %s\n", strings.Join(rec.References, ", "))
		}
	}
	return err
}

func gapsCommand(c *cli.Context) error {
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	gaps, err := ws.Gaps(c.Context)
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		fmt.Fprintln(c.App.Writer, "No gaps.")
		return nil
	}
	printGaps(c.App.Writer, gaps)
	return nil
}

func printGaps(out io.Writer, gaps []*core.Gap) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRISK\tDOMAIN\tTITLE")
	for _, gap := range gaps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", gap.Id, gap.RiskLevel, gap.Domain, gap.Title)
	}
	tw.Flush()
}

func documentsCommand(c *cli.Context) error {
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	docs, err := ws.Documents(c.Context)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents.")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tFORMAT\tSECTIONS\tSTATUS")
	for _, doc := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", doc.Id, doc.Filename, doc.Format, doc.SectionCount, doc.Status)
	}
	return tw.Flush()
}

func statsCommand(c *cli.Context) error {
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	d, err := ws.Dashboard(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Documents: %d\nSections: %d (%d embedded)\nGaps: %d\nRecommendations: %d\n",
		d.Documents, d.Sections, d.EmbeddedSections, d.Gaps, d.Recommendations)
	if len(d.RiskMatrix) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tHIGH\tMEDIUM\tLOW")
	for _, row := range d.RiskMatrix {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.Domain, row.High, row.Medium, row.Low)
	}
	return tw.Flush()
}

func backfillCommand(c *cli.Context) error {
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	progress := ingestion.NewProgressTracker(c.App.ErrWriter, c.Int("report-interval"))
	report, err := ws.Backfill(c.Context, core.ID(c.Uint64("document")), progress)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Embedded %d of %d sections across %d documents\n", report.Embedded, report.Sections, report.Documents)
	}
	return err
}

func clearGapsCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("clear-gaps deletes every gap and recommendation; pass --yes to confirm")
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.ClearGaps(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Cleared all gaps and recommendations.")
	return nil
}

func exportCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("export requires exactly one PATH argument")
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stats, err := ws.Export(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Exported %d documents, %d sections, %d gaps, %d recommendations\n",
		stats.Documents, stats.Sections, stats.Gaps, stats.Recommendations)
	return nil
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("import requires exactly one PATH argument")
	}
	ws, _, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stats, err := ws.Import(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported %d documents, %d sections, %d gaps, %d recommendations\n",
		stats.Documents, stats.Sections, stats.Gaps, stats.Recommendations)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists; pass --force to overwrite", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func idArg(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, errors.New("exactly one ID argument is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid ID %q", c.Args().First())
	}
	return core.ID(id), nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := strings.ToLower(c.String("log-format")); format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

