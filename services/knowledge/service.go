package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const vectorTopK = 20

// Service answers free-text questions against a module's indexed source
// material. Vector search is the primary path; when the index has nothing
// for the module it degrades to fuzzy keyword matching over the stored
// chunks. Missing context yields an empty result, not an error.
type Service struct {
	client    *pinecone.Client
	embedder  embeddings.Embedder
	indexName string
	sources   db.SourceRepository
}

func NewService(pineconeAPIKey, openaiAPIKey, indexName string, sources db.SourceRepository) (*Service, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: pineconeAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	llm, err := openai.New(
		openai.WithModel("gpt-4o-mini"),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Service{
		client:    pc,
		embedder:  embedder,
		indexName: indexName,
		sources:   sources,
	}, nil
}

// Namespace scopes vectors per module so two modules never leak excerpts
// into each other's searches.
func Namespace(moduleID int) string {
	return fmt.Sprintf("module-%d", moduleID)
}

func (s *Service) Search(ctx context.Context, moduleID int, query string, limit int) ([]models.KnowledgeExcerpt, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.KnowledgeExcerpt{}, nil
	}

	excerpts, err := s.vectorSearch(ctx, moduleID, query, limit)
	if err != nil {
		zap.S().Warnf("vector search failed for module %d, falling back to keyword search: %v", moduleID, err)
		return s.keywordSearch(moduleID, query, limit)
	}

	if len(excerpts) == 0 {
		return s.keywordSearch(moduleID, query, limit)
	}

	return excerpts, nil
}

func (s *Service) vectorSearch(ctx context.Context, moduleID int, query string, limit int) ([]models.KnowledgeExcerpt, error) {
	idxDesc, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: Namespace(moduleID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	queryEmbeddings, err := s.embedder.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          queryEmbeddings[0],
		TopK:            vectorTopK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	var excerpts []models.KnowledgeExcerpt
	for _, match := range result.Matches {
		if match.Vector.Metadata == nil {
			continue
		}

		metadata := match.Vector.Metadata.AsMap()

		excerpt := models.KnowledgeExcerpt{Score: match.Score}

		if title, ok := metadata["source_title"].(string); ok {
			excerpt.SourceTitle = title
		}

		if heading, ok := metadata["heading"].(string); ok {
			excerpt.Heading = heading
		}

		if content, ok := metadata["content"].(string); ok {
			excerpt.Content = content
		}

		if enriched, ok := metadata["enriched_context"].(string); ok && enriched != "" {
			excerpt.Content = excerpt.Content + "\n\nContext: " + enriched
		}

		if excerpt.Content == "" {
			continue
		}

		excerpts = append(excerpts, excerpt)
	}

	// Matches arrive ordered by similarity; just cap the count.
	if len(excerpts) > limit {
		excerpts = excerpts[:limit]
	}

	return excerpts, nil
}

// keywordSearch ranks stored chunks by how many query terms they match,
// fuzzily, word by word.
func (s *Service) keywordSearch(moduleID int, query string, limit int) ([]models.KnowledgeExcerpt, error) {
	chunks, err := s.sources.GetChunksByModule(moduleID)
	if err != nil {
		zap.S().Errorf("failed to load chunks for module %d: %v", moduleID, err)
		return []models.KnowledgeExcerpt{}, nil
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []models.KnowledgeExcerpt{}, nil
	}

	titles := s.sourceTitlesByID(moduleID)

	var excerpts []models.KnowledgeExcerpt
	for _, chunk := range chunks {
		score := chunkMatchScore(chunk, terms)
		if score == 0 {
			continue
		}

		excerpts = append(excerpts, models.KnowledgeExcerpt{
			SourceTitle: titles[chunk.SourceID],
			Heading:     chunk.Heading,
			Content:     chunk.Content,
			Score:       score,
		})
	}

	sort.Slice(excerpts, func(i, j int) bool {
		return excerpts[i].Score > excerpts[j].Score
	})

	if len(excerpts) > limit {
		excerpts = excerpts[:limit]
	}

	return excerpts, nil
}

func (s *Service) sourceTitlesByID(moduleID int) map[int]string {
	titles := make(map[int]string)

	docs, err := s.sources.GetSourcesByModule(moduleID)
	if err != nil {
		zap.S().Warnf("failed to load source titles for module %d: %v", moduleID, err)
		return titles
	}

	for _, doc := range docs {
		titles[doc.ID] = doc.Title
	}

	return titles
}

func chunkMatchScore(chunk *models.SourceChunk, terms []string) float32 {
	haystack := chunk.Heading + " " + chunk.Content

	words := strings.Fields(strings.ToLower(haystack))
	cleanWords := make([]string, 0, len(words))
	for _, word := range words {
		cleanWord := strings.Trim(word, ".,!?;:()[]{}\"'")
		if len(cleanWord) > 0 {
			cleanWords = append(cleanWords, cleanWord)
		}
	}

	var matched int
	for _, term := range terms {
		if fuzzy.MatchFold(term, haystack) {
			matched++
			continue
		}

		if len(fuzzy.Find(term, cleanWords)) > 0 {
			matched++
		}
	}

	return float32(matched) / float32(len(terms))
}
