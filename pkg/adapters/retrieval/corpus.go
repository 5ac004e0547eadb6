package retrieval

import (
	"fmt"
	"os"

	"github.com/aescanero/scenegen/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Corpus is the YAML document set loaded into an index
type Corpus struct {
	Documents []domain.Match `yaml:"documents"`
}

// LoadCorpus reads a YAML corpus file
func LoadCorpus(path string) ([]domain.Match, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a YAML corpus. Every document needs an id and text,
// and ids must be unique.
func ParseCorpus(data []byte) ([]domain.Match, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Documents))
	for i, doc := range c.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d has no id", i)
		}
		if doc.Text == "" {
			return nil, fmt.Errorf("document %s has no text", doc.ID)
		}
		if _, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("duplicate document id: %s", doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}

	return c.Documents, nil
}

// MarshalCorpus encodes documents as a YAML corpus
func MarshalCorpus(docs []domain.Match) ([]byte, error) {
	return yaml.Marshal(Corpus{Documents: docs})
}
