package retrieval

import (
	"reflect"
	"strings"
	"testing"

	"github.com/aescanero/scenegen/pkg/domain"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Use MoveAlongPath with a ParametricFunction; set_fill(BLUE) and __init__")
	want := []string{
		"movealongpath", "move", "along", "path",
		"parametricfunction", "parametric", "function",
		"set_fill", "set", "fill", "blue", "init",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v\nwant      %v", got, want)
	}
}

func TestQueryTermsAreDistinct(t *testing.T) {
	got := QueryTerms("circle Circle CIRCLE square")
	if !reflect.DeepEqual(got, []string{"circle", "square"}) {
		t.Fatalf("QueryTerms = %v", got)
	}
}

func TestTermScoreFavoursRareTerms(t *testing.T) {
	stats := Stats{Documents: 100, TotalLength: 1000}
	rare := TermScore(stats, 2, 1, 10)
	common := TermScore(stats, 80, 1, 10)
	if rare <= common {
		t.Fatalf("rare = %f, common = %f", rare, common)
	}
	if TermScore(stats, 0, 1, 10) != 0 {
		t.Fatal("score for an unindexed term must be zero")
	}
}

func TestTopKOrdering(t *testing.T) {
	got := TopK(map[string]float64{"b": 1, "a": 1, "c": 3, "z": 0}, 5)
	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	if !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
		t.Fatalf("TopK = %v", ids)
	}
	if len(TopK(map[string]float64{"a": 1, "b": 2}, 1)) != 1 {
		t.Fatal("TopK did not truncate")
	}
}

func TestParseCorpus(t *testing.T) {
	docs, err := ParseCorpus([]byte(`
documents:
  - id: Circle
    text: "class Circle(Arc): a circle"
    metadata:
      type: class
  - id: Circle.surround
    text: "def surround(self, mobject): ..."
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(docs) != 2 || docs[0].Metadata["type"] != "class" || docs[1].ID != "Circle.surround" {
		t.Fatalf("docs = %+v", docs)
	}

	for name, bad := range map[string]string{
		"missing id":   "documents:\n  - text: x\n",
		"missing text": "documents:\n  - id: a\n",
		"duplicate":    "documents:\n  - {id: a, text: x}\n  - {id: a, text: y}\n",
		"not yaml":     "documents: [",
	} {
		if _, err := ParseCorpus([]byte(bad)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCorpusRoundTrip(t *testing.T) {
	in := []domain.Match{{ID: "a", Text: "alpha", Metadata: map[string]string{"type": "function"}}}
	data, err := MarshalCorpus(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := ParseCorpus(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip = %+v", out)
	}
}

const pythonSource = `import numpy as np


def helper(x):
    return x * 2


@dataclass
class Circle(Arc):
    """A circle."""

    def __init__(self, radius=1.0, **kwargs):
        super().__init__(**kwargs)
        self.radius = radius

    def surround(self, mobject, buffer=0.2):
        self.move_to(mobject)

        return self

    @staticmethod
    def from_three_points(p1, p2, p3):
        return Circle()


class Empty:
    pass
`

func TestChunkPython(t *testing.T) {
	chunks := ChunkPython(pythonSource, "mobject/geometry/arc.py")

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	want := []string{"helper", "Circle", "Circle.surround", "Circle.from_three_points", "Empty"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("chunk ids = %v, want %v", ids, want)
	}

	byID := make(map[string]domain.Match)
	for _, c := range chunks {
		byID[c.ID] = c
	}

	circle := byID["Circle"]
	if !strings.HasPrefix(circle.Text, "@dataclass") || !strings.Contains(circle.Text, "self.radius = radius") {
		t.Fatalf("class chunk = %q", circle.Text)
	}
	if strings.Contains(circle.Text, "def surround") {
		t.Fatal("class chunk includes a method")
	}

	surround := byID["Circle.surround"]
	if !strings.Contains(surround.Text, "return self") {
		t.Fatalf("method chunk lost lines after a blank line: %q", surround.Text)
	}
	if surround.Metadata["parent_id"] != "Circle" || surround.Metadata["type"] != ChunkMethod {
		t.Fatalf("method metadata = %v", surround.Metadata)
	}
	if !strings.HasPrefix(byID["Circle.from_three_points"].Text, "@staticmethod") {
		t.Fatal("decorator not attached to method")
	}
	if byID["helper"].Metadata["source"] != "mobject/geometry/arc.py" {
		t.Fatalf("source metadata = %v", byID["helper"].Metadata)
	}
}
