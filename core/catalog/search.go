package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// =============================================================================
// Topic Search
// =============================================================================

// DefaultTopicLimit is the default number of topic matches returned.
const DefaultTopicLimit = 10

// TopicMatch is one ranked result from a free-text topic search.
type TopicMatch struct {
	DocumentID string
	Score      float64
}

// TopicSearcher answers free-text topic queries over document metadata
// (title, tags, section keywords) using an in-memory full-text index. Used
// by the resolver's lowest tier. Results are deterministic for a fixed
// catalog: ties in score are broken by document ID.
type TopicSearcher struct {
	index bleve.Index
}

// topicDocument is the shape indexed per catalog document.
type topicDocument struct {
	Domain   string   `json:"domain"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`
}

// NewTopicSearcher builds a memory-only full-text index over the catalog's
// document metadata.
func NewTopicSearcher(catalog *Index) (*TopicSearcher, error) {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create topic index: %w", err)
	}

	for _, doc := range catalog.Documents() {
		entry := topicDocument{
			Domain: doc.Domain,
			Title:  doc.Title,
			Tags:   doc.Tags,
		}
		for _, section := range doc.Sections {
			entry.Keywords = append(entry.Keywords, section.Keywords...)
		}
		if err := index.Index(doc.ID, entry); err != nil {
			index.Close()
			return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}

	return &TopicSearcher{index: index}, nil
}

// Search returns up to limit documents matching the free-text topic, ranked
// by relevance descending with ID tie-breaks. An empty topic or limit <= 0
// uses DefaultTopicLimit; no matches returns an empty slice.
func (s *TopicSearcher) Search(topic string, limit int) ([]TopicMatch, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultTopicLimit
	}

	query := bleve.NewMatchQuery(topic)
	request := bleve.NewSearchRequestOptions(query, limit, 0, false)
	result, err := s.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("topic search %q: %w", topic, err)
	}

	matches := make([]TopicMatch, 0, len(result.Hits))
	for _, hit := range result.Hits {
		matches = append(matches, TopicMatch{DocumentID: hit.ID, Score: hit.Score})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].DocumentID < matches[b].DocumentID
	})
	return matches, nil
}

// Close releases the underlying index.
func (s *TopicSearcher) Close() error {
	return s.index.Close()
}
