package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kifiya-ai/kavas/api"
	"github.com/kifiya-ai/kavas/config"
	"github.com/kifiya-ai/kavas/crawler"
	"github.com/kifiya-ai/kavas/database"
	"github.com/kifiya-ai/kavas/embeddings"
	"github.com/kifiya-ai/kavas/history"
	"github.com/kifiya-ai/kavas/index"
	"github.com/kifiya-ai/kavas/ingestion"
	"github.com/kifiya-ai/kavas/knowledge"
	"github.com/kifiya-ai/kavas/llm"
	"github.com/kifiya-ai/kavas/workflow"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "crawl":
		crawlCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "refresh":
		refreshCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// app holds every long-lived dependency, constructed once from the
// loaded configuration.
type app struct {
	cfg       config.Config
	logger    *log.Logger
	store     *index.PostgresStore
	graph     *knowledge.Graph
	embedder  embeddings.Embedder
	ingester  *ingestion.Service
	runner    *workflow.Workflow
	chats     *history.Service
	closeFunc func(ctx context.Context)
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	if err := database.EnsureSchema(ctx, pgPool, cfg.Embeddings.Dimension); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("neo4j connection: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pgPool.Close()
		_ = neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	generatorClient, err := llm.NewClient(cfg)
	if err != nil {
		pgPool.Close()
		_ = neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("llm setup: %w", err)
	}
	graderClient, err := llm.NewClientForModel(cfg, cfg.LLM.GraderModelName())
	if err != nil {
		pgPool.Close()
		_ = neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("grader llm setup: %w", err)
	}
	rewriterClient, err := llm.NewClientForModel(cfg, cfg.LLM.RewriterModelName())
	if err != nil {
		pgPool.Close()
		_ = neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("rewriter llm setup: %w", err)
	}
	summarizerClient, err := llm.NewClientForModel(cfg, cfg.LLM.SummarizerModelName())
	if err != nil {
		pgPool.Close()
		_ = neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("summarizer llm setup: %w", err)
	}

	store := index.NewPostgresStore(pgPool)
	graph := knowledge.NewGraph(neo4jDriver)
	ingester := ingestion.New(store, embedder, graph, cfg.Namespace, logger)

	retriever := workflow.NewIndexRetriever(embedder, store, cfg.Namespace, cfg.TopK)
	runner := workflow.New(
		retriever,
		workflow.NewLLMGrader(graderClient),
		workflow.NewLLMRewriter(rewriterClient),
		workflow.NewLLMGenerator(generatorClient),
		cfg.MaxRewrites,
		logger,
	)

	chats := history.NewService(
		history.NewPostgresStore(pgPool),
		history.NewLLMSummarizer(summarizerClient),
		cfg.ChatMaxWords,
		logger,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		graph:    graph,
		embedder: embedder,
		ingester: ingester,
		runner:   runner,
		chats:    chats,
		closeFunc: func(ctx context.Context) {
			_ = neo4jDriver.Close(ctx)
			pgPool.Close()
		},
	}, nil
}

func (a *app) close(ctx context.Context) {
	a.closeFunc(ctx)
}

// refresh re-crawls the configured site and re-ingests the result.
// Stable chunk identifiers make the upsert overwrite stale rows.
func (a *app) refresh(ctx context.Context) (int, error) {
	if a.cfg.Crawl.BaseURL == "" {
		return 0, fmt.Errorf("CRAWL_BASE_URL is not set")
	}

	c, err := crawler.New(a.cfg.Crawl.BaseURL, a.cfg.Crawl.UserAgent, a.cfg.Crawl.Delay, a.cfg.Crawl.MaxPages, a.logger)
	if err != nil {
		return 0, fmt.Errorf("crawler setup: %w", err)
	}

	pages, err := c.Crawl(ctx)
	if err != nil {
		return 0, fmt.Errorf("crawl %s: %w", a.cfg.Crawl.BaseURL, err)
	}

	if a.cfg.Crawl.Snapshot != "" {
		if err := crawler.SaveSnapshot(a.cfg.Crawl.Snapshot, pages); err != nil {
			a.logger.Printf("save crawl snapshot: %v", err)
		}
	}

	return a.ingester.IngestPages(ctx, pages)
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address for the HTTP server to listen on")
	refresh := flags.Bool("refresh", true, "run the scheduled site refresh alongside the server")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close(context.Background())

	server := api.New(a.runner, a.chats, a.graph, api.Ops{
		Crawl: func(ctx context.Context) (int, error) {
			return a.refresh(ctx)
		},
		Ingest: func(ctx context.Context, dir string) (int, error) {
			return a.ingester.IngestDirectory(ctx, dir)
		},
		Clear: func(ctx context.Context) error {
			if err := a.store.Clear(ctx, cfg.Namespace); err != nil {
				return err
			}
			return a.graph.Clear(ctx)
		},
	}, logger)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if *refresh && cfg.Crawl.BaseURL != "" {
		scheduler := ingestion.NewScheduler(cfg.RefreshSchedule, func(ctx context.Context) error {
			_, err := a.refresh(ctx)
			return err
		}, logger)
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("scheduler stopped: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server failed: %v", err)
	}
}

func crawlCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("crawl", flag.ExitOnError)
	baseURL := flags.String("url", cfg.Crawl.BaseURL, "site to crawl")
	snapshot := flags.String("out", cfg.Crawl.Snapshot, "path to write the crawl snapshot")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse crawl flags: %v", err)
	}

	if strings.TrimSpace(*baseURL) == "" {
		logger.Fatal("a base URL is required (set CRAWL_BASE_URL or pass --url)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := crawler.New(*baseURL, cfg.Crawl.UserAgent, cfg.Crawl.Delay, cfg.Crawl.MaxPages, logger)
	if err != nil {
		logger.Fatalf("crawler setup: %v", err)
	}

	pages, err := c.Crawl(ctx)
	if err != nil {
		logger.Fatalf("crawl failed: %v", err)
	}

	if err := crawler.SaveSnapshot(*snapshot, pages); err != nil {
		logger.Fatalf("save snapshot: %v", err)
	}

	logger.Printf("crawled %d pages from %s into %s", len(pages), *baseURL, *snapshot)
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	snapshot := flags.String("snapshot", cfg.Crawl.Snapshot, "crawl snapshot to ingest")
	dir := flags.String("dir", "", "directory of documents to ingest instead of a snapshot")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close(context.Background())

	var count int
	if strings.TrimSpace(*dir) != "" {
		count, err = a.ingester.IngestDirectory(ctx, *dir)
	} else {
		var pages []crawler.Page
		pages, err = crawler.LoadSnapshot(*snapshot)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		count, err = a.ingester.IngestPages(ctx, pages)
	}
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	logger.Printf("ingested %d chunks", count)
}

func refreshCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("refresh", flag.ExitOnError)
	once := flags.Bool("once", false, "refresh once and exit instead of running on the schedule")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse refresh flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close(context.Background())

	if *once {
		count, err := a.refresh(ctx)
		if err != nil {
			logger.Fatalf("refresh failed: %v", err)
		}
		logger.Printf("refreshed %d chunks", count)
		return
	}

	scheduler := ingestion.NewScheduler(cfg.RefreshSchedule, func(ctx context.Context) error {
		_, err := a.refresh(ctx)
		return err
	}, logger)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("scheduler failed: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Printf("This will permanently delete the %q index namespace and the site graph. Continue? [y/N]: ", cfg.Namespace)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer a.close(context.Background())

	if err := a.store.Clear(ctx, cfg.Namespace); err != nil {
		logger.Fatalf("clear index: %v", err)
	}
	logger.Printf("cleared index namespace %q", cfg.Namespace)

	if err := a.graph.Clear(ctx); err != nil {
		logger.Fatalf("clear graph: %v", err)
	}
	logger.Println("site graph cleared")
}

func printUsage() {
	fmt.Println("Usage: kavas <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API with the scheduled site refresh")
	fmt.Println("  crawl    Crawl the configured site into a snapshot file")
	fmt.Println("  ingest   Ingest a crawl snapshot or a directory of documents")
	fmt.Println("  refresh  Crawl and re-ingest the site, once or on the schedule")
	fmt.Println("  clear    Remove indexed chunks and the site graph")
}
