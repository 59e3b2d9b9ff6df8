package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gaspardhassenforder/elearning-sub000/config"
	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services/knowledge"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/protobuf/types/known/structpb"
)

type DocumentChunk struct {
	ID              string
	SourceID        int
	ModuleID        int
	ChunkIndex      int
	Heading         string
	HeadingPath     []string // Parent headings leading to this chunk
	Content         string
	OriginalDoc     string
	EnrichedContext string
}

type EnrichChunkContextParams struct {
	EnrichedSummary string `json:"enriched_summary"`
}

var enrichmentTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "enrich_chunk_context",
			Description: "Provide an enriched contextual summary for a document chunk",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"enriched_summary": map[string]any{
						"type":        "string",
						"description": "A comprehensive summary that explains what this chunk is about, its context within the larger document, and why it's relevant. This should be self-contained so someone reading just this summary would understand the content and its significance.",
					},
				},
				"required": []string{"enriched_summary"},
			},
		},
	},
}

func main() {
	moduleID := flag.Int("module", 0, "ID of the module whose source documents should be indexed")
	flag.Parse()

	if *moduleID <= 0 {
		log.Fatal("[ERROR] -module flag is required")
	}

	log.Printf("[INFO] Starting knowledge indexing for module %d", *moduleID)

	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("[ERROR] DB_URL environment variable is required")
	}

	if cfg.PineconeAPIKey == "" {
		log.Fatal("[ERROR] PINECONE_API_KEY environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("[ERROR] OPENAI_API_KEY environment variable is required")
	}

	sourceRepo, err := db.NewPostgresSourceRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[ERROR] Failed to initialize source database: %v", err)
	}
	defer sourceRepo.Close()

	llm, err := openai.New(
		openai.WithModel("gpt-4o-mini"),
		openai.WithToken(cfg.OpenAIAPIKey),
	)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create OpenAI client: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create embedder: %v", err)
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.PineconeAPIKey,
	})
	if err != nil {
		log.Fatalf("[ERROR] Failed to create Pinecone client: %v", err)
	}

	if err := ensurePineconeIndex(pc, cfg.PineconeIndexName); err != nil {
		log.Fatalf("[ERROR] Failed to ensure Pinecone index: %v", err)
	}

	sources, err := sourceRepo.GetSourcesByModule(*moduleID)
	if err != nil {
		log.Fatalf("[ERROR] Failed to retrieve source documents: %v", err)
	}

	log.Printf("[INFO] Retrieved %d source documents for module %d", len(sources), *moduleID)

	for i, doc := range sources {
		log.Printf("[INFO] Processing document %d/%d (ID: %d, Title: %s)", i+1, len(sources), doc.ID, doc.Title)

		if err := processSource(pc, cfg.PineconeIndexName, sourceRepo, doc, llm, embedder); err != nil {
			log.Printf("[ERROR] Failed to process document ID %d: %v", doc.ID, err)
			continue
		}

		log.Printf("[INFO] Successfully processed document ID %d", doc.ID)
	}

	log.Printf("[INFO] Knowledge indexing completed for module %d", *moduleID)
}

func ensurePineconeIndex(pc *pinecone.Client, indexName string) error {
	ctx := context.Background()

	indexes, err := pc.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	for _, idx := range indexes {
		if idx.Name == indexName {
			log.Printf("[INFO] Index %s already exists", indexName)
			return nil
		}
	}

	log.Printf("[INFO] Creating Pinecone index: %s", indexName)
	dimension := int32(1536) // OpenAI ada-002 embedding dimension
	deletionProtection := pinecone.DeletionProtectionDisabled
	metric := pinecone.Cosine

	_, err = pc.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:               indexName,
		Dimension:          &dimension,
		Metric:             &metric,
		Cloud:              pinecone.Aws,
		Region:             "us-east-1",
		DeletionProtection: &deletionProtection,
		Tags:               &pinecone.IndexTags{"environment": "development", "project": "tutor-knowledge"},
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	for {
		idx, err := pc.DescribeIndex(ctx, indexName)
		if err != nil {
			return fmt.Errorf("failed to describe index: %w", err)
		}
		if idx.Status.Ready {
			log.Printf("[INFO] Index %s is ready", indexName)
			break
		}
		log.Printf("[INFO] Waiting for index %s to be ready...", indexName)
		time.Sleep(10 * time.Second)
	}

	return nil
}

func processSource(pc *pinecone.Client, indexName string, sourceRepo db.SourceRepository, doc *models.SourceDocument, llm llms.Model, embedder embeddings.Embedder) error {
	log.Printf("[INFO] Chunking document ID %d", doc.ID)
	chunks := chunkMarkdownByHeadings(doc)
	if len(chunks) == 0 {
		log.Printf("[INFO] No chunks created for document ID %d", doc.ID)
		return nil
	}
	log.Printf("[INFO] Created %d chunks for document ID %d", len(chunks), doc.ID)

	log.Printf("[INFO] Deleting existing vectors for document ID %d", doc.ID)
	if err := deleteExistingVectors(pc, indexName, doc); err != nil {
		return fmt.Errorf("failed to delete existing vectors: %w", err)
	}

	for i := range chunks {
		headingInfo := chunks[i].Heading
		if len(chunks[i].HeadingPath) > 0 {
			headingInfo = fmt.Sprintf("%s [Path: %s]", chunks[i].Heading, strings.Join(chunks[i].HeadingPath, " → "))
		}
		log.Printf("[INFO] Processing chunk %d/%d for document ID %d (Heading: %s)", i+1, len(chunks), doc.ID, headingInfo)

		enrichedContext, err := enrichChunkContext(llm, chunks[i])
		if err != nil {
			log.Printf("[ERROR] Failed to enrich chunk %d for document ID %d: %v", i+1, doc.ID, err)
			log.Printf("[INFO] Using fallback content for chunk %d of document ID %d", i+1, doc.ID)
			chunks[i].EnrichedContext = chunks[i].Content
		} else {
			chunks[i].EnrichedContext = enrichedContext
		}

		log.Printf("[INFO] Generating embedding for chunk %d", i+1)
		vector, err := createSingleVector(chunks[i], doc.Title, embedder)
		if err != nil {
			return fmt.Errorf("failed to create vector for chunk %d: %w", i+1, err)
		}

		log.Printf("[INFO] Upserting chunk %d to Pinecone", i+1)
		if err := upsertSingleVector(pc, indexName, doc.ModuleID, vector); err != nil {
			return fmt.Errorf("failed to upsert chunk %d: %w", i+1, err)
		}
	}
	log.Printf("[INFO] Completed upserting all %d chunks for document ID %d", len(chunks), doc.ID)

	// Persist the chunks so keyword fallback search works without Pinecone.
	stored := make([]*models.SourceChunk, 0, len(chunks))
	for _, chunk := range chunks {
		stored = append(stored, &models.SourceChunk{
			ID:              chunk.ID,
			SourceID:        chunk.SourceID,
			ModuleID:        chunk.ModuleID,
			Heading:         chunk.Heading,
			HeadingPath:     strings.Join(chunk.HeadingPath, " → "),
			Content:         chunk.Content,
			EnrichedContext: chunk.EnrichedContext,
		})
	}
	if err := sourceRepo.ReplaceChunksForSource(doc.ID, stored); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}
	log.Printf("[INFO] Persisted %d chunks for document ID %d", len(stored), doc.ID)

	return nil
}

func chunkMarkdownByHeadings(doc *models.SourceDocument) []DocumentChunk {
	content := doc.Content
	lines := strings.Split(content, "\n")

	var chunks []DocumentChunk
	var currentChunk strings.Builder
	var currentHeading string
	var headingStack []string
	chunkIndex := 0

	headingRegex := regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	appendChunk := func() {
		chunkContent := strings.TrimSpace(currentChunk.String())
		if chunkContent == "" {
			return
		}
		chunk := DocumentChunk{
			ID:          fmt.Sprintf("source_%d_chunk_%d", doc.ID, chunkIndex),
			SourceID:    doc.ID,
			ModuleID:    doc.ModuleID,
			ChunkIndex:  chunkIndex,
			Heading:     currentHeading,
			HeadingPath: make([]string, len(headingStack)),
			Content:     chunkContent,
			OriginalDoc: content,
		}
		copy(chunk.HeadingPath, headingStack)
		chunks = append(chunks, chunk)
		chunkIndex++
	}

	for _, line := range lines {
		if match := headingRegex.FindStringSubmatch(line); match != nil {
			if currentChunk.Len() > 0 {
				appendChunk()
				currentChunk.Reset()
			}

			headingLevel := len(match[1])
			currentHeading = match[2]

			// Same level or shallower pops back to the parent.
			if headingLevel <= len(headingStack) {
				headingStack = headingStack[:headingLevel-1]
			}
			headingStack = append(headingStack, currentHeading)
		}
		currentChunk.WriteString(line + "\n")
	}

	if currentChunk.Len() > 0 {
		appendChunk()
	}

	// A document with no headings still becomes one searchable chunk.
	if len(chunks) == 0 && strings.TrimSpace(content) != "" {
		chunks = append(chunks, DocumentChunk{
			ID:          fmt.Sprintf("source_%d_chunk_0", doc.ID),
			SourceID:    doc.ID,
			ModuleID:    doc.ModuleID,
			ChunkIndex:  0,
			Heading:     "Document Content",
			HeadingPath: []string{},
			Content:     content,
			OriginalDoc: content,
		})
	}

	return chunks
}

func enrichChunkContext(llm llms.Model, chunk DocumentChunk) (string, error) {
	ctx := context.Background()

	systemPrompt := `You are an expert at analyzing course material and providing enriched contextual summaries.

Your task is to create a comprehensive summary that:
1. Explains what this specific chunk covers
2. Provides context about how it fits within the larger document
3. Highlights why this information is relevant to a learner
4. Makes the chunk self-contained and searchable

The enriched summary should help someone understand the chunk's content and significance without needing to read the entire original document.`

	headingPathStr := ""
	if len(chunk.HeadingPath) > 0 {
		headingPathStr = fmt.Sprintf("Section hierarchy: %s", strings.Join(chunk.HeadingPath, " → "))
	}

	userPrompt := fmt.Sprintf(`Please analyze this document chunk and create an enriched contextual summary.

CHUNK TO ANALYZE:
Heading: %s
%s
Content: %s

FULL DOCUMENT CONTEXT:
%s

Create a comprehensive summary that explains what this chunk is about, its context within the larger document, and why it matters for someone learning this material.`,
		chunk.Heading, headingPathStr, chunk.Content, chunk.OriginalDoc)

	messageHistory := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := llm.GenerateContent(ctx, messageHistory,
		llms.WithTools(enrichmentTools),
		llms.WithTemperature(0.3),
		llms.WithToolChoice("required"))
	if err != nil {
		return "", fmt.Errorf("failed to generate enrichment: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in enrichment response")
	}

	toolCall := resp.Choices[0].ToolCalls[0]
	if toolCall.FunctionCall.Name != "enrich_chunk_context" {
		return "", fmt.Errorf("unexpected function call: %s", toolCall.FunctionCall.Name)
	}

	var params EnrichChunkContextParams
	if err := json.Unmarshal([]byte(toolCall.FunctionCall.Arguments), &params); err != nil {
		return "", fmt.Errorf("failed to parse enrichment arguments: %w", err)
	}

	return params.EnrichedSummary, nil
}

func deleteExistingVectors(pc *pinecone.Client, indexName string, doc *models.SourceDocument) error {
	ctx := context.Background()

	idxDesc, err := pc.DescribeIndex(ctx, indexName)
	if err != nil {
		return fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: knowledge.Namespace(doc.ModuleID),
	})
	if err != nil {
		return fmt.Errorf("failed to create index connection: %w", err)
	}

	prefix := fmt.Sprintf("source_%d_", doc.ID)
	limit := uint32(100)

	listResp, err := idxConn.ListVectors(ctx, &pinecone.ListVectorsRequest{
		Prefix: &prefix,
		Limit:  &limit,
	})
	if err != nil {
		// A namespace that does not exist yet has nothing to delete.
		if strings.Contains(err.Error(), "Namespace not found") {
			return nil
		}
		return fmt.Errorf("failed to list vectors: %w", err)
	}

	if len(listResp.VectorIds) == 0 {
		return nil
	}

	log.Printf("[INFO] Found %d existing vectors for document ID %d, deleting them", len(listResp.VectorIds), doc.ID)

	for listResp.NextPaginationToken != nil || len(listResp.VectorIds) > 0 {
		vectorIdsToDelete := make([]string, 0, len(listResp.VectorIds))
		for _, vectorId := range listResp.VectorIds {
			if vectorId != nil {
				vectorIdsToDelete = append(vectorIdsToDelete, *vectorId)
			}
		}

		if len(vectorIdsToDelete) > 0 {
			err = idxConn.DeleteVectorsById(ctx, vectorIdsToDelete)
			if err != nil {
				return fmt.Errorf("failed to delete vector batch: %w", err)
			}
			log.Printf("[INFO] Deleted %d vectors for document ID %d", len(vectorIdsToDelete), doc.ID)
		}

		if listResp.NextPaginationToken == nil {
			break
		}
		listResp, err = idxConn.ListVectors(ctx, &pinecone.ListVectorsRequest{
			Prefix:          &prefix,
			Limit:           &limit,
			PaginationToken: listResp.NextPaginationToken,
		})
		if err != nil {
			return fmt.Errorf("failed to list next batch of vectors: %w", err)
		}
	}

	return nil
}

func createSingleVector(chunk DocumentChunk, sourceTitle string, embedder embeddings.Embedder) (*pinecone.Vector, error) {
	ctx := context.Background()

	combinedText := fmt.Sprintf("Heading: %s\n\nContent: %s\n\nContext: %s",
		chunk.Heading, chunk.Content, chunk.EnrichedContext)

	vectors, err := embedder.EmbedDocuments(ctx, []string{combinedText})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	metadata := map[string]any{
		"source_id":        chunk.SourceID,
		"chunk_index":      chunk.ChunkIndex,
		"source_title":     sourceTitle,
		"heading":          chunk.Heading,
		"heading_path":     strings.Join(chunk.HeadingPath, " → "),
		"content":          chunk.Content,
		"enriched_context": chunk.EnrichedContext,
		"created_at":       time.Now().Format(time.RFC3339),
	}

	metadataStruct, err := structpb.NewStruct(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata struct for chunk %s: %w", chunk.ID, err)
	}

	return &pinecone.Vector{
		Id:       chunk.ID,
		Values:   &vectors[0],
		Metadata: metadataStruct,
	}, nil
}

func upsertSingleVector(pc *pinecone.Client, indexName string, moduleID int, vector *pinecone.Vector) error {
	ctx := context.Background()

	idxDesc, err := pc.DescribeIndex(ctx, indexName)
	if err != nil {
		return fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: knowledge.Namespace(moduleID),
	})
	if err != nil {
		return fmt.Errorf("failed to create index connection: %w", err)
	}

	_, err = idxConn.UpsertVectors(ctx, []*pinecone.Vector{vector})
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	return nil
}
