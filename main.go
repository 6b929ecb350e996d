package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/athapong/radgraph-mcp/pkg/radgraph"
	"github.com/athapong/radgraph-mcp/pkg/search"
	"github.com/athapong/radgraph-mcp/pkg/state"
	"github.com/athapong/radgraph-mcp/services"
	"github.com/athapong/radgraph-mcp/tools"
)

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	enableSSE := flag.Bool("sse", false, "Enable SSE server")
	sseAddr := flag.String("sse-addr", ":8080", "Address for SSE server to listen on")
	sseBaseURL := flag.String("sse-base-url", "http://localhost:8080", "Public base URL for SSE endpoints")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: Error loading env file %s: %v\n", *envFile, err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"radgraph-mcp",
		"1.0.0",
		server.WithLogging(),
	)

	tools.RegisterToolManagerTool(mcpServer)

	enableTools := strings.Split(os.Getenv("ENABLE_TOOLS"), ",")
	allToolsEnabled := len(enableTools) == 1 && enableTools[0] == ""

	isEnabled := func(toolName string) bool {
		return allToolsEnabled || slices.Contains(enableTools, toolName)
	}

	deps := buildDependencies(logger)

	if isEnabled("search") {
		tools.RegisterSearchTools(mcpServer, deps)
	}

	if isEnabled("knowledge") {
		tools.RegisterKnowledgeTools(mcpServer, deps)
	}

	logger.Infof("session %s ready", deps.State.SessionID())

	// Check if SSE server should be enabled
	if *enableSSE || os.Getenv("ENABLE_SSE") == "true" {
		sseServer := server.NewSSEServer(mcpServer, *sseBaseURL)

		go func() {
			log.Printf("Starting SSE server on %s with base URL %s", *sseAddr, *sseBaseURL)
			if err := sseServer.Start(*sseAddr); err != nil {
				log.Fatalf("Failed to start SSE server: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sseServer.Shutdown(ctx); err != nil {
			log.Printf("Error during SSE server shutdown: %v", err)
		}
		log.Println("SSE server shutdown complete")
	} else {
		if err := server.ServeStdio(mcpServer); err != nil {
			panic(fmt.Sprintf("Server error: %v", err))
		}
	}
}

// buildDependencies wires the retrieval and analytics stack: Elasticsearch
// for BM25 and document fetches, OpenAI-compatible embeddings for query
// vectors, and qdrant as the vector side when QDRANT_HOST is set.
func buildDependencies(logger *logrus.Logger) *tools.Dependencies {
	esClient := services.NewElasticsearchClient(services.ElasticsearchConfigFromEnv(), logger)

	var vector search.VectorRetriever = esClient
	if qdrantCfg, ok := services.QdrantConfigFromEnv(); ok {
		retriever, err := services.NewQdrantRetriever(qdrantCfg, esClient, logger)
		if err != nil {
			logger.Fatalf("qdrant configured but unreachable: %v", err)
		}
		logger.Infof("using qdrant collection %q for vector retrieval", qdrantCfg.Collection)
		vector = retriever
	}

	embedder, err := services.NewOpenAIEmbedderFromEnv()
	if err != nil {
		logger.Warnf("embeddings unavailable, kNN and hybrid search will fail: %v", err)
	}

	var emb services.Embedder
	if embedder != nil {
		emb = embedder
	}

	return &tools.Dependencies{
		Engine:   search.NewEngine(esClient, vector, logger),
		Embedder: emb,
		Parser:   radgraph.NewParser(logger),
		State:    state.NewStore(),
		Logger:   logger,
	}
}
