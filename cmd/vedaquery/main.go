package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vedaquery/internal/chunker"
	"vedaquery/internal/config"
	"vedaquery/internal/embedding"
	"vedaquery/internal/embedding/hash"
	"vedaquery/internal/embedding/openai"
	"vedaquery/internal/index"
	"vedaquery/internal/loader"
	"vedaquery/internal/retriever"
	"vedaquery/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var indexPath string
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/vedaquery/config.yaml if not provided)")
	flag.StringVar(&indexPath, "index", "", "Base path for index persistence (overrides config)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()
	sources := flag.Args()

	log, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	var cfg *config.AppConfig
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if indexPath != "" {
		cfg.Index.Path = indexPath
	}

	// Assemble components
	var emb embedding.Embedder
	dimension := cfg.Index.Dimension
	switch cfg.Embedder.Type {
	case "hash", "":
		h := hash.NewEmbedder(cfg.Index.Dimension)
		dimension = h.Dimension()
		emb = h
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatal("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatal("openai embedder init failed", zap.Error(err))
		}
		emb = client
	default:
		log.Fatal("unknown embedder", zap.String("type", cfg.Embedder.Type))
	}

	ix, err := index.New(dimension)
	if err != nil {
		log.Fatal("index init failed", zap.Error(err))
	}
	if cfg.Index.Path != "" {
		if err := ix.Restore(cfg.Index.Path); err == nil {
			log.Info("index restored", zap.String("path", cfg.Index.Path), zap.Int("entries", ix.Len()))
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn("index restore skipped", zap.Error(err))
		}
	}

	src := loader.NewFileSource(cfg.SourcesDir)
	ch := chunker.NewVerseChunker(cfg.Chunker.MaxChunkSize)
	svc := retriever.New(ch, ix, src, emb, log)

	if len(sources) == 0 {
		sources, err = src.List()
		if err != nil || len(sources) == 0 {
			fmt.Println("Usage: vedaquery [--config=config.yaml] source_id [source_id ...]")
			fmt.Printf("No sources given and none found under %q.\n", cfg.SourcesDir)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	for _, id := range sources {
		n, err := svc.Ingest(ctx, id, false)
		if err != nil {
			log.Fatal("ingest failed", zap.String("source", id), zap.Error(err))
		}
		log.Info("ingested", zap.String("source", id), zap.Int("chunks", n))
	}

	if cfg.Index.Path != "" {
		if err := ix.Persist(cfg.Index.Path); err != nil {
			log.Warn("index persist failed", zap.Error(err))
		}
	}

	m := tui.New(svc, cfg.Retrieval.TopK)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal("tui failed", zap.Error(err))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"vedaquery.log"}
	return cfg.Build()
}
