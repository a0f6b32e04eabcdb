// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/agent"
	"github.com/hyperjump/kotae/internal/bus"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists, defaults and
// environment overrides are used. Returns the path actually loaded ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	var err error
	switch command := os.Args[1]; command {
	case "server":
		err = runServer(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:], os.Stdout)
	case "chunk":
		err = runChunk(os.Args[2:], os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// components are the long-lived pieces shared by every engine.
type components struct {
	embedder embedding.Embedder
	ingestor *indexer.Ingestor
	metrics  *metrics.Metrics
	factory  retrieval.EngineFactory
}

func (c *components) Close() {
	if c.embedder != nil {
		_ = c.embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		if cfg.Embedding.Provider != config.ProviderONNX {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		logger.Warn("onnx embedder unavailable, falling back to mock embeddings", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	ingestor := indexer.NewIngestor(chunker,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Watch.Extensions))

	indexFactory := vector.FactoryFor(cfg.Index.Type)
	if cfg.Index.Type == config.IndexFAISS && !vector.IsFAISSAvailable() {
		logger.Warn("faiss not compiled in, falling back to memory index")
		indexFactory = vector.FactoryFor(config.IndexMemory)
	}
	logger.Info("vector index selected",
		zap.String("type", cfg.Index.Type),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	m := metrics.New()
	factory := func() (*retrieval.Engine, error) {
		kw, err := keyword.NewBleveIndex()
		if err != nil {
			return nil, fmt.Errorf("create keyword index: %w", err)
		}
		return retrieval.NewEngine(embedder,
			retrieval.WithIndexFactory(indexFactory),
			retrieval.WithKeywordIndex(kw),
			retrieval.WithLogger(logger),
			retrieval.WithMetrics(m))
	}
	return &components{embedder: embedder, ingestor: ingestor, metrics: m, factory: factory}, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	sessions := retrieval.NewRegistry(comps.factory,
		retrieval.WithRegistryLogger(logger),
		retrieval.WithRegistryMetrics(comps.metrics))
	defer sessions.Close()
	if _, err := sessions.GetOrCreate(retrieval.DefaultSession); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Watch.Directories) > 0 {
		recursive := cfg.Watch.RecursiveOrDefault()
		rebuilder := watcher.NewRebuilder(comps.ingestor, sessions, cfg.Watch.Directories, recursive, logger)
		w := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, recursive, rebuilder.OnChange,
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		go w.Trigger(ctx)
	}

	srv := server.NewServer(sessions, comps.ingestor, comps.metrics, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// splitQueryArgs separates file paths from the question. Everything after a
// "--" is the question; without one, every positional argument is.
func splitQueryArgs(args []string) (files []string, question string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], strings.TrimSpace(strings.Join(args[i+1:], " "))
		}
	}
	return nil, strings.TrimSpace(strings.Join(args, " "))
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae query [flags] [files...] -- <question>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae query -dir ./docs -- what does the warranty cover
  kotae query notes.md faq.txt -- how do I reset my password
  kotae query -dir ./docs -top-k 3 -threshold 0.4 -format json -- refunds
`)
}

func runQuery(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (default from config)")
	threshold := fs.Float64("threshold", math.NaN(), "minimum similarity in (0,1]; unset disables filtering")
	format := fs.String("format", "text", "output format: text or json")
	recursive := fs.Bool("recursive", true, "descend into subdirectories of -dir")
	var dirs stringList
	fs.Var(&dirs, "dir", "directory to ingest (repeatable)")
	fs.Usage = func() { printQueryUsage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	files, question := splitQueryArgs(fs.Args())
	if question == "" {
		printQueryUsage(fs)
		return errors.New("a question is required")
	}
	if len(files) == 0 && len(dirs) == 0 {
		return errors.New("at least one file or -dir is required")
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	opts := models.QueryOptions{TopK: cfg.Retrieval.TopK, SimilarityThreshold: cfg.Retrieval.SimilarityThreshold}
	if *topK != 0 {
		opts.TopK = *topK
	}
	if !math.IsNaN(*threshold) {
		opts.SimilarityThreshold = models.Threshold(*threshold)
	}

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()
	engine, err := comps.factory()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New(bus.WithLogger(logger))
	pipeline := agent.NewPipeline(b, comps.ingestor, engine, logger)
	busCtx, cancelBus := context.WithCancel(ctx)
	busDone := make(chan struct{})
	go func() {
		_ = b.Run(busCtx)
		close(busDone)
	}()
	defer func() {
		cancelBus()
		<-busDone
	}()

	built, err := pipeline.Ingest(ctx, agent.UploadPayload{Paths: files, Directories: dirs, Recursive: *recursive})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	for _, p := range built.Skipped {
		logger.Warn("file skipped", zap.String("path", p))
	}
	logger.Debug("index built", zap.Int("chunks", built.Stats.TotalChunks))

	matches, err := pipeline.Ask(ctx, question, opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return cli.WriteMatches(stdout, question, matches, outFormat)
}

func runChunk(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	size := fs.Int("size", 300, "words per chunk")
	overlap := fs.Int("overlap", 50, "words shared by consecutive chunks")
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: kotae chunk [-size N] [-overlap N] <file>")
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		return err
	}
	chunker, err := indexer.NewChunker(*size, *overlap)
	if err != nil {
		return err
	}
	ext := filepath.Ext(fs.Arg(0))
	doc, err := indexer.NewIngestor(chunker, indexer.WithExtensions([]string{ext})).IngestFile(fs.Arg(0))
	if err != nil {
		return err
	}
	return cli.WriteChunks(stdout, doc, outFormat)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `kotae - document retrieval for question answering

Usage:
  kotae server [flags]                          Start the HTTP server
  kotae query [flags] [files...] -- <question>  Ingest files and retrieve context for a question
  kotae chunk [flags] <file>                    Print the chunks of a file
  kotae version                                 Show version
  kotae help                                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Query Flags:
  --config string    Config file path
  --dir string       Directory to ingest (repeatable)
  --recursive        Descend into subdirectories (default: true)
  --top-k int        Number of chunks to retrieve (default from config)
  --threshold float  Minimum similarity (default: no filtering)
  --format string    Output format: text or json (default: text)

Chunk Flags:
  --size int         Words per chunk (default: 300)
  --overlap int      Words shared by consecutive chunks (default: 50)
  --format string    Output format: text or json (default: text)

Environment:
  KOTAE_* variables override the config file (e.g. KOTAE_EMBEDDING_PROVIDER=openai).
  A .env file in the current directory is loaded first.

Examples:
  kotae server
  kotae query -dir ./docs -- what is the refund policy
  kotae query -format json manual.txt -- how do I pair the device
  kotae chunk -size 100 -overlap 20 manual.txt`)
}
