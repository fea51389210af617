// internal/chat/retriever/retriever.go
package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrRetrievalFailed = errors.New("RETRIEVAL_FAILED")

// Passage is one retrieved document fragment.
type Passage struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever is the opaque document-retrieval capability consumed by the
// orchestrator's document branch.
type Retriever interface {
	Retrieve(ctx context.Context, contextID, question string) ([]Passage, error)
}

// ElasticsearchRetriever searches the context's passage index.
type ElasticsearchRetriever struct {
	client      *elasticsearch.Client
	indexPrefix string
	maxPassages int
	logger      logger.Logger
}

func NewElasticsearchRetriever(client *elasticsearch.Client, indexPrefix string, maxPassages int, log logger.Logger) *ElasticsearchRetriever {
	return &ElasticsearchRetriever{
		client:      client,
		indexPrefix: indexPrefix,
		maxPassages: maxPassages,
		logger:      log.With(map[string]interface{}{"component": "document-retriever"}),
	}
}

// Retrieve returns the top passages for a question from the context's index.
func (r *ElasticsearchRetriever) Retrieve(ctx context.Context, contextID, question string) ([]Passage, error) {
	queryBody := map[string]interface{}{
		"size": r.maxPassages,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"content": map[string]interface{}{
					"query": question,
				},
			},
		},
	}
	body, _ := json.Marshal(queryBody)

	index := r.indexPrefix
	if contextID != "" {
		index = fmt.Sprintf("%s_%s", r.indexPrefix, strings.ToLower(contextID))
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, stderrors.NewRetrievalFailedError(fmt.Errorf("%w: %v", ErrRetrievalFailed, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, stderrors.NewRetrievalFailedError(fmt.Errorf("%w: search returned status %s", ErrRetrievalFailed, res.Status()))
	}

	var searchResponse struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Title   string `json:"title"`
					Content string `json:"content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResponse); err != nil {
		return nil, stderrors.NewRetrievalFailedError(fmt.Errorf("%w: decode error: %v", ErrRetrievalFailed, err))
	}

	passages := make([]Passage, 0, len(searchResponse.Hits.Hits))
	for _, hit := range searchResponse.Hits.Hits {
		passages = append(passages, Passage{
			Title:   hit.Source.Title,
			Content: hit.Source.Content,
			Score:   hit.Score,
		})
	}

	r.logger.Debug("passages retrieved", map[string]interface{}{
		"index": index,
		"count": len(passages),
	})

	return passages, nil
}
