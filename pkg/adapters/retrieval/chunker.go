package retrieval

import (
	"strings"

	"github.com/aescanero/scenegen/pkg/domain"
)

// Chunk kinds stored in Match.Metadata["type"]
const (
	ChunkClass    = "class"
	ChunkMethod   = "method"
	ChunkFunction = "function"
)

// ChunkPython splits Python source into retrievable chunks: one per top-level
// function, one per class holding its header and constructor, and one per
// method. source is recorded in each chunk's metadata.
func ChunkPython(code, source string) []domain.Match {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")

	var chunks []domain.Match
	for _, blk := range blocks(lines, 0, len(lines), 0) {
		switch blk.kind {
		case "def":
			chunks = append(chunks, chunk(blk.name, ChunkFunction, source, "", lines[blk.start:blk.end]))
		case "class":
			chunks = append(chunks, classChunks(lines, blk, source)...)
		}
	}
	return chunks
}

type block struct {
	kind  string
	name  string
	start int
	end   int
}

// blocks finds class and def statements at exactly indent within
// lines[from:to]. Decorators are included in the block that follows them.
func blocks(lines []string, from, to, indent int) []block {
	var out []block
	decoratorStart := -1

	for i := from; i < to; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		ind := indentation(line)
		if ind != indent {
			if ind < indent {
				decoratorStart = -1
			}
			continue
		}

		stmt := strings.TrimSpace(line)
		if strings.HasPrefix(stmt, "@") {
			if decoratorStart < 0 {
				decoratorStart = i
			}
			continue
		}

		kind, name := header(stmt)
		if kind == "" {
			decoratorStart = -1
			continue
		}

		start := i
		if decoratorStart >= 0 {
			start = decoratorStart
		}
		decoratorStart = -1

		end := blockEnd(lines, i+1, to, indent)
		out = append(out, block{kind: kind, name: name, start: start, end: end})
		i = end - 1
	}

	return out
}

// blockEnd returns the index after the last line indented deeper than indent
func blockEnd(lines []string, from, to, indent int) int {
	end := from
	for i := from; i < to; i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if indentation(lines[i]) <= indent {
			break
		}
		end = i + 1
	}
	return end
}

func header(stmt string) (kind, name string) {
	stmt = strings.TrimPrefix(stmt, "async ")
	for _, k := range []string{"class", "def"} {
		if !strings.HasPrefix(stmt, k+" ") {
			continue
		}
		rest := strings.TrimSpace(stmt[len(k)+1:])
		if i := strings.IndexAny(rest, "(:"); i >= 0 {
			rest = rest[:i]
		}
		return k, strings.TrimSpace(rest)
	}
	return "", ""
}

func classChunks(lines []string, cls block, source string) []domain.Match {
	bodyIndent := -1
	for i := cls.start + 1; i < cls.end; i++ {
		if strings.TrimSpace(lines[i]) != "" && !strings.HasPrefix(strings.TrimSpace(lines[i]), "@") {
			if ind := indentation(lines[i]); ind > 0 {
				bodyIndent = ind
				break
			}
		}
	}
	if bodyIndent < 0 {
		return []domain.Match{chunk(cls.name, ChunkClass, source, "", lines[cls.start:cls.end])}
	}

	methods := blocks(lines, cls.start+1, cls.end, bodyIndent)

	headerEnd := cls.end
	var children []domain.Match
	for _, m := range methods {
		if m.kind != "def" {
			continue
		}
		if m.name == "__init__" {
			headerEnd = m.end
			continue
		}
		if headerEnd == cls.end {
			headerEnd = m.start
		}
		children = append(children,
			chunk(cls.name+"."+m.name, ChunkMethod, source, cls.name, lines[m.start:m.end]))
	}

	parent := chunk(cls.name, ChunkClass, source, "", lines[cls.start:headerEnd])
	return append([]domain.Match{parent}, children...)
}

func chunk(id, kind, source, parent string, lines []string) domain.Match {
	meta := map[string]string{"type": kind}
	if source != "" {
		meta["source"] = source
	}
	if parent != "" {
		meta["parent_id"] = parent
	}
	return domain.Match{
		ID:       id,
		Text:     strings.TrimSpace(strings.Join(lines, "\n")),
		Metadata: meta,
	}
}

// indentation counts leading whitespace, a tab counting as four spaces
func indentation(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
