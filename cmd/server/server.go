package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gaspardhassenforder/elearning-sub000/config"
	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/handlers"
	"github.com/gaspardhassenforder/elearning-sub000/logger"
	"github.com/gaspardhassenforder/elearning-sub000/services"
	"github.com/gaspardhassenforder/elearning-sub000/services/agent"
	"github.com/gaspardhassenforder/elearning-sub000/services/examiner"
	"github.com/gaspardhassenforder/elearning-sub000/services/knowledge"
	"github.com/gaspardhassenforder/elearning-sub000/services/prompt"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.Init(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.DatabaseURL == "" {
		zap.S().Fatal("DB_URL environment variable is required")
	}

	if cfg.AnthropicAPIKey == "" {
		zap.S().Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		zap.S().Fatal("OPENAI_API_KEY environment variable is required")
	}

	if cfg.PineconeAPIKey == "" {
		zap.S().Fatal("PINECONE_API_KEY environment variable is required")
	}

	objectiveRepo, err := db.NewPostgresObjectiveRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize objective database: %v", err)
	}
	defer objectiveRepo.Close()

	progressRepo, err := db.NewPostgresProgressRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize progress database: %v", err)
	}
	defer progressRepo.Close()

	threadRepo, err := db.NewPostgresThreadRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize thread database: %v", err)
	}
	defer threadRepo.Close()

	promptRepo, err := db.NewPostgresPromptTemplateRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize prompt template database: %v", err)
	}
	defer promptRepo.Close()

	moduleRepo, err := db.NewPostgresModuleRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize module database: %v", err)
	}
	defer moduleRepo.Close()

	artifactRepo, err := db.NewPostgresArtifactRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize artifact database: %v", err)
	}
	defer artifactRepo.Close()

	sourceRepo, err := db.NewPostgresSourceRepository(cfg.DatabaseURL)
	if err != nil {
		zap.S().Fatalf("Failed to initialize source database: %v", err)
	}
	defer sourceRepo.Close()

	if err := prompt.SeedDefaultGlobalTemplate(promptRepo); err != nil {
		zap.S().Fatalf("Failed to seed global prompt template: %v", err)
	}

	knowledgeService, err := knowledge.NewService(cfg.PineconeAPIKey, cfg.OpenAIAPIKey, cfg.PineconeIndexName, sourceRepo)
	if err != nil {
		zap.S().Fatalf("Failed to initialize knowledge service: %v", err)
	}

	objectiveService := services.NewObjectiveService(objectiveRepo)
	progressService := services.NewProgressService(progressRepo, objectiveRepo)
	moduleService := services.NewModuleService(moduleRepo)
	artifactService := services.NewArtifactService(artifactRepo, moduleService)

	assembler := prompt.NewAssembler(promptRepo)

	toolDeps := agent.ToolDeps{
		Sources:    sourceRepo,
		Artifacts:  artifactService,
		Knowledge:  knowledgeService,
		Progress:   progressService,
		Objectives: objectiveService,
		Modules:    moduleService,
	}

	modelClient := agent.NewAnthropicModelClient(cfg.AnthropicAPIKey)
	agentService := agent.NewService(modelClient, threadRepo, assembler, toolDeps, cfg.AgentModel)

	examinerService, err := examiner.NewService(cfg.OpenAIAPIKey, cfg.ExaminerModel, progressService, moduleService)
	if err != nil {
		zap.S().Fatalf("Failed to initialize examiner service: %v", err)
	}

	objectiveHandler := handlers.NewObjectiveHandler(objectiveService, progressService)
	chatHandler := handlers.NewChatHandler(agentService, examinerService, progressService, moduleService, knowledgeService)

	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	api := router.PathPrefix("/api").Subrouter()
	objectiveHandler.RegisterRoutes(api)
	chatHandler.RegisterRoutes(api)

	api.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	fmt.Printf("Server starting on port %s\n", cfg.Port)

	if err := http.ListenAndServe(addr, router); err != nil {
		zap.S().Fatalf("Server failed to start: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
