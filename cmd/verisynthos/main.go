// Command verisynthos is the research-and-analysis platform's single
// process entrypoint: it wires config, storage, ingestion, retrieval, the
// worker façades, the job dispatcher, and the HTTP API together and runs
// them until SIGINT/SIGTERM, the teacher's cmd/tarsy/main.go startup
// sequencing generalized to this system's component set.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/nnmtech/verisynthos/pkg/api"
	"github.com/nnmtech/verisynthos/pkg/chunk"
	"github.com/nnmtech/verisynthos/pkg/cleanup"
	"github.com/nnmtech/verisynthos/pkg/config"
	"github.com/nnmtech/verisynthos/pkg/database"
	"github.com/nnmtech/verisynthos/pkg/embed"
	"github.com/nnmtech/verisynthos/pkg/events"
	"github.com/nnmtech/verisynthos/pkg/extract"
	"github.com/nnmtech/verisynthos/pkg/extract/office"
	"github.com/nnmtech/verisynthos/pkg/extract/pdf"
	"github.com/nnmtech/verisynthos/pkg/extract/plaintext"
	"github.com/nnmtech/verisynthos/pkg/facade/exporter"
	"github.com/nnmtech/verisynthos/pkg/facade/memory"
	"github.com/nnmtech/verisynthos/pkg/facade/monitor"
	"github.com/nnmtech/verisynthos/pkg/facade/researcher"
	"github.com/nnmtech/verisynthos/pkg/facade/retriever"
	"github.com/nnmtech/verisynthos/pkg/facade/transformer"
	"github.com/nnmtech/verisynthos/pkg/facade/verifier"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/ingest/localfs"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/llm"
	"github.com/nnmtech/verisynthos/pkg/maker"
	"github.com/nnmtech/verisynthos/pkg/orchestrator"
	"github.com/nnmtech/verisynthos/pkg/queue"
	"github.com/nnmtech/verisynthos/pkg/retrieve"
	"github.com/nnmtech/verisynthos/pkg/store"
	"github.com/nnmtech/verisynthos/pkg/store/memstore"
	"github.com/nnmtech/verisynthos/pkg/store/postgres"
	"github.com/nnmtech/verisynthos/pkg/version"
	"github.com/nnmtech/verisynthos/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("starting "+version.AppName, "version", version.Full())

	cfg, err := config.Load(filepath.Join(*configDir, ".env"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	documents, blobs, jobs, closeStore := mustOpenStore(cfg)
	defer closeStore()

	extractors := extract.NewRegistry()
	extractors.RegisterAll(pdf.New())
	extractors.RegisterAll(office.New())
	extractors.RegisterAll(plaintext.New())

	embedDim := envInt("EMBED_DIMENSION", 256)
	embedder := embed.NewDeterministic(embedDim)

	pipeline := &ingest.Pipeline{
		Documents:  documents,
		Blobs:      blobs,
		Extractors: extractors,
		Embedder:   embedder,
		ChunkCfg:   chunk.DefaultConfig(),
		Limiter:    ingest.NewQuotaLimiter(cfg.QuotaLimitPerMinute),
	}
	localSource := localfs.New()
	searchEngine := retrieve.New(documents, embedder)

	retryQueueCapacity := envInt("INGEST_RETRY_QUEUE_CAPACITY", 1000)
	retryQueue := ingest.NewRetryQueue(pipeline, documents, retryQueueCapacity)

	sampler := samplerFromEnv()
	makerParams := maker.Params{K: cfg.MakerK, MaxRounds: cfg.MakerMaxRounds}

	monitorFacade := monitor.New(sampler, makerParams)

	internalAddr := getEnv("INTERNAL_WORKER_ADDR", "127.0.0.1:8081")
	workerMux := http.NewServeMux()
	workerMux.HandleFunc("POST /stage/research", researcher.New(sampler, makerParams).Handler())
	workerMux.HandleFunc("POST /stage/ingest", memory.New(pipeline, localSource, retryQueue).Handler())
	workerMux.HandleFunc("POST /stage/verify", verifier.New(sampler, makerParams).Handler())
	workerMux.HandleFunc("POST /stage/retrieve", retriever.New(searchEngine).Handler())
	workerMux.HandleFunc("POST /stage/transform", transformer.New(sampler, makerParams).Handler())
	workerMux.HandleFunc("POST /stage/export", exporter.New(sampler, makerParams, blobs).Handler())

	workerListener, err := net.Listen("tcp", internalAddr)
	if err != nil {
		slog.Error("failed to bind internal worker listener", "addr", internalAddr, "error", err)
		os.Exit(1)
	}
	workerServer := &http.Server{Handler: workerMux}
	go func() {
		if err := workerServer.Serve(workerListener); err != nil && err != http.ErrServerClosed {
			slog.Error("internal worker server error", "error", err)
		}
	}()
	slog.Info("internal worker façades listening", "addr", internalAddr)

	registry := worker.NewRegistry()
	for stage, path := range map[job.Stage]string{
		job.StageResearch:  "/stage/research",
		job.StageIngest:    "/stage/ingest",
		job.StageVerify:    "/stage/verify",
		job.StageRetrieve:  "/stage/retrieve",
		job.StageTransform: "/stage/transform",
		job.StageExport:    "/stage/export",
	} {
		if url, ok := cfg.WorkerURLs[stage]; ok {
			registry.Register(stage, url)
			continue
		}
		registry.Register(stage, "http://"+internalAddr+path)
	}

	bus := events.NewBus()
	publisher := events.NewPublisher(bus)

	orch := orchestrator.New(jobs, registry).WithEvents(publisher).WithMonitor(monitorFacade)
	dispatcher := queue.NewDispatcher(jobs, orch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	go retryQueue.Run(ctx)
	defer retryQueue.Stop()

	cleanupService := cleanup.NewService(cfg, documents)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	server := api.NewServer(cfg, jobs, documents, dispatcher, searchEngine, pipeline)
	server.SetFileWatchers(ingest.NewFilesystemWatcherRegistry(pipeline, localSource))

	go func() {
		slog.Info("API server listening", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "error", err)
	}
	if err := workerServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("internal worker server shutdown error", "error", err)
	}
	slog.Info("stopped")
}

// mustOpenStore opens the document/blob/job store adapters named by
// STORE_BACKEND (default "memstore"). "postgres" additionally opens and
// migrates a Postgres connection pool per DB_* env vars.
func mustOpenStore(cfg *config.Config) (store.DocumentStore, store.BlobStore, store.JobStore, func()) {
	switch getEnv("STORE_BACKEND", "memstore") {
	case "postgres":
		dbCfg, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("failed to load database config", "error", err)
			os.Exit(1)
		}
		client, err := database.NewClient(context.Background(), dbCfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")

		blobDir := getEnv("BLOB_STORE_DIR", "./data/blobs")
		blobs, err := postgres.NewBlobStore(blobDir)
		if err != nil {
			slog.Error("failed to open blob store", "dir", blobDir, "error", err)
			os.Exit(1)
		}

		documents := postgres.NewDocumentStore(client.DB())
		jobs := postgres.NewJobStore(client.DB())
		return documents, blobs, jobs, func() {
			if err := client.Close(); err != nil {
				slog.Error("error closing database client", "error", err)
			}
		}
	default:
		slog.Info("using in-memory store backend (set STORE_BACKEND=postgres for durable storage)")
		return memstore.NewDocumentStore(), memstore.NewBlobStore(), memstore.NewJobStore(), func() {}
	}
}

// samplerFromEnv builds the maker.Sampler every façade votes against. No
// LLM client credentials are required to start: with LLM_BASE_URL unset,
// requests target the public OpenAI API and fail fast with a clear error
// the first time a façade actually samples, rather than refusing to boot.
func samplerFromEnv() maker.Sampler {
	client := llm.NewClient(llm.Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		APIKey:  os.Getenv("LLM_API_KEY"),
		Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
	})
	return client.Sampler()
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
