// Package main is the matsearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/builder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/cli"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/config"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/encoder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/search"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/server"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/watcher"
	"github.com/mk-mkone/multimodal-retrieval-system/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/matsearch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "indices":
		runIndices()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("matsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-query latencies, watch events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		bld := components.Builder
		watchOpts := []watcher.WatcherOption{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(cfg.Storage.EmbeddingsRoot, func(modality, model string) {
			report, err := bld.Build(context.Background(), &models.BuildRequest{
				Modality: modality,
				Model:    model,
			})
			if err != nil {
				logger.Warn("watch rebuild failed",
					zap.String("modality", modality),
					zap.String("model", model),
					zap.Error(err))
				return
			}
			logger.Info("watch rebuild complete",
				zap.String("modality", modality),
				zap.String("model", model),
				zap.Int("vectors", report.VectorsIndexed))
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Executor,
		components.Builder,
		components.Registry,
		components.Store,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	modality := fs.String("modality", "", "modality to build (text, simulation, timeseries)")
	model := fs.String("model", "", "embedding model id to build")
	strategy := fs.String("strategy", "", "index strategy: flat (default) or hnsw")
	_ = fs.Parse(os.Args[2:])

	if *modality == "" || *model == "" {
		fmt.Println("Usage: matsearch build -modality <modality> -model <model> [-strategy flat|hnsw]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	report, err := components.Builder.Build(context.Background(), &models.BuildRequest{
		Modality: *modality,
		Model:    *model,
		Strategy: *strategy,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Built %s/%s: %d vectors, dims=%d, metric=%s, took %s\n",
		report.Modality, report.Model, report.VectorsIndexed,
		report.Dimensionality, report.Metric, report.Duration.Round(time.Millisecond))
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = query artifacts directly)")
	modality := fs.String("modality", models.ModalityText, "modality to search")
	model := fs.String("model", "", "embedding model id (default from modality)")
	topK := fs.Int("top-k", 10, "number of candidates to rank")
	page := fs.Int("page", 1, "result page (1-based)")
	size := fs.Int("size", 10, "results per page")
	yearFrom := fs.Int("year-from", 0, "minimum publication year")
	yearTo := fs.Int("year-to", 0, "maximum publication year")
	method := fs.String("method", "", "computational method filter")
	source := fs.String("source", "", "source corpus filter")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: matsearch search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: matsearch search [flags] <query>")
		os.Exit(1)
	}

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.SearchRequest{
		Modality: *modality,
		Model:    *model,
		Query:    queryStr,
		TopK:     *topK,
		Page:     *page,
		Size:     *size,
	}
	if *yearFrom != 0 || *yearTo != 0 || *method != "" || *source != "" {
		req.Filters = &models.SearchFilters{
			YearFrom: *yearFrom,
			YearTo:   *yearTo,
			Method:   *method,
			Source:   *source,
		}
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct artifact access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Executor.Search(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndices() {
	fs := flag.NewFlagSet("indices", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the registry directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var entries []*registry.Entry
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/indices")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Indices []*registry.Entry `json:"indices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		entries = out.Indices
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		reg, err := registry.Open(cfg.Storage.IndexRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
			os.Exit(1)
		}
		entries = reg.List()
	}

	if err := cli.WriteIndices(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Indices        int    `json:"indices"`
	TotalVectors   int    `json:"total_vectors"`
	Documents      *int64 `json:"documents,omitempty"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		reg, err := registry.Open(cfg.Storage.IndexRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
			os.Exit(1)
		}
		entries := reg.List()
		status.Indices = len(entries)
		for _, e := range entries {
			status.TotalVectors += e.VectorCount
		}
		if cfg.Storage.MetadataDBPath != "" {
			if store, err := metadata.NewSQLiteStore(cfg.Storage.MetadataDBPath); err == nil {
				if n, err := store.CountDocuments(context.Background()); err == nil {
					status.Documents = &n
				}
				_ = store.Close()
			}
		}
		if diskBytes, err := registry.DiskUsageBytes(cfg.Storage.IndexRoot, cfg.Storage.MetadataDBPath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("indices:        %d   # published (modality, model) pairs\n", status.Indices)
		fmt.Printf("total_vectors:  %d   # vectors across all published indices\n", status.TotalVectors)
		if status.Documents != nil {
			fmt.Printf("documents:      %d   # rows in the metadata store\n", *status.Documents)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage:     %d   # artifact bytes on disk\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Registry *registry.Registry
	Adapter  *encoder.Adapter
	Store    metadata.FilterStore
	Executor *search.Executor
	Builder  *builder.Builder
}

func (c *Components) Close() {
	if c.Adapter != nil {
		_ = c.Adapter.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	regOpts := []registry.Option{}
	if debug && logger != nil {
		regOpts = append(regOpts, registry.WithLogger(logger))
	}
	reg, err := registry.Open(cfg.Storage.IndexRoot, regOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	adapter := encoder.NewAdapter()
	var textEncoder encoder.Encoder
	onnxEncoder, err := encoder.NewONNXTextEncoder(
		cfg.Encoder.ModelPath,
		cfg.Encoder.Dimensions,
		cfg.Encoder.MaxTokens,
		cfg.Encoder.CacheSize,
	)
	if err != nil {
		if logger != nil {
			logger.Warn("text encoder unavailable, using mock", zap.Error(err))
		}
		textEncoder = encoder.NewMockEncoder(cfg.Encoder.Dimensions)
	} else {
		textEncoder = onnxEncoder
	}
	adapter.Register(models.ModalityText, textEncoder)

	var store metadata.FilterStore
	if cfg.Storage.MetadataDBPath != "" {
		sqliteStore, err := metadata.NewSQLiteStore(cfg.Storage.MetadataDBPath)
		if err != nil {
			if logger != nil {
				logger.Warn("metadata store unavailable, filters disabled", zap.Error(err))
			}
		} else {
			store = sqliteStore
		}
	}

	execOpts := []search.Option{}
	if debug && logger != nil {
		execOpts = append(execOpts, search.WithLogger(logger))
	}
	exec := search.NewExecutor(reg, adapter, store, &cfg.Search, execOpts...)

	bldOpts := []builder.Option{builder.WithValidateSample(cfg.Search.ValidateSample)}
	if logger != nil {
		bldOpts = append(bldOpts, builder.WithLogger(logger))
	}
	bld := builder.NewBuilder(cfg.Storage.EmbeddingsRoot, reg, bldOpts...)

	return &Components{
		Registry: reg,
		Adapter:  adapter,
		Store:    store,
		Executor: exec,
		Builder:  bld,
	}, nil
}

func printUsage() {
	fmt.Println(`matsearch - Multimodal materials retrieval service

Usage:
  matsearch server [flags]            Start the HTTP server
  matsearch build [flags]             Build and publish an index from embedding drops
  matsearch search [flags] <query>    Search a published index
  matsearch indices [flags]           List published indices
  matsearch status [flags]            Show registry and storage status
  matsearch version                   Show version
  matsearch help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/matsearch/config.yaml)
  --debug            Enable debug logging

Build Flags:
  --config string    Config file path
  --modality string  Modality to build (text, simulation, timeseries)
  --model string     Embedding model id to build
  --strategy string  Index strategy: flat (default) or hnsw

Search Flags:
  --config string    Config file path (for direct artifact mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read artifacts directly.
  --modality string  Modality to search (default: text)
  --model string     Embedding model id
  --top-k int        Candidates to rank (default: 10)
  --page int         Result page, 1-based (default: 1)
  --size int         Results per page (default: 10)
  --year-from int    Minimum publication year
  --year-to int      Maximum publication year
  --method string    Computational method filter (e.g. dft, md)
  --source string    Source corpus filter
  --output string    Output format: text or json (default: text)

Examples:
  matsearch server
  matsearch build -modality text -model all-MiniLM-L6-v2
  matsearch search perovskite band gap
  matsearch search --method dft --year-from 2020 "thermal conductivity"
  matsearch search --output json "solid electrolyte"
  matsearch indices
  matsearch status --output json`)
}
