package corpus

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strings"
)

var (
	// ATX heading: "## Title" with optional closing hashes
	headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)

	// Fence start/end - allow leading whitespace, support ``` and ~~~
	fenceStartPattern = regexp.MustCompile("^\\s*(```|~~~)\\s*([^\\s`]*)\\s*$")
	fenceEndPattern   = regexp.MustCompile("^\\s*(```|~~~)\\s*$")

	// Inline link or image: [text](target "title")
	linkPattern = regexp.MustCompile(`!?\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

	// Autolink: <https://example.com>
	autolinkPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9+.\-]*://[^>\s]+)>`)
)

// ParseMarkdown turns a markdown document into snapshot records. Each ATX heading
// opens a record at its heading depth; the prose, fenced code and links under it
// form a single entry titled after the heading. Text before the first heading has
// no section to belong to and is ignored.
func ParseMarkdown(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	// Support up to 1MB lines for large files
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var (
		records        []Record
		current        *mdSection
		inFence        bool
		fenceDelimiter string
		fence          CodeBlock
		fenceLines     []string
	)

	flush := func() {
		if current == nil {
			return
		}
		records = append(records, current.record())
		current = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Track fenced code blocks (must match same delimiter type)
		if inFence {
			if match := fenceEndPattern.FindStringSubmatch(line); match != nil && match[1] == fenceDelimiter {
				inFence = false
				fenceDelimiter = ""
				fence.Content = strings.Join(fenceLines, "\n")
				if current != nil {
					current.code = append(current.code, fence)
				}
				continue
			}
			fenceLines = append(fenceLines, line)
			continue
		}
		if match := fenceStartPattern.FindStringSubmatch(line); match != nil {
			inFence = true
			fenceDelimiter = match[1]
			fence = CodeBlock{Language: match[2]}
			fenceLines = nil
			continue
		}

		if match := headingPattern.FindStringSubmatch(line); match != nil {
			flush()
			current = &mdSection{level: len(match[1]), title: match[2]}
			continue
		}

		if current == nil {
			continue
		}
		current.prose = append(current.prose, line)
		current.refs = append(current.refs, lineReferences(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// An unterminated fence runs to the end of the document.
	if inFence && current != nil {
		fence.Content = strings.Join(fenceLines, "\n")
		current.code = append(current.code, fence)
	}
	flush()

	return records, nil
}

// lineReferences returns the link targets on one prose line in the order they
// appear. Code spans are not scanned, and an autolink inside an inline link
// destination is not counted twice.
func lineReferences(line string) []string {
	text := []byte(maskCodeSpans(line))

	type hit struct {
		pos    int
		target string
	}
	var hits []hit
	for _, m := range linkPattern.FindAllSubmatchIndex(text, -1) {
		hits = append(hits, hit{m[0], string(text[m[2]:m[3]])})
	}
	for _, m := range linkPattern.FindAllIndex(text, -1) {
		blank(text[m[0]:m[1]])
	}
	for _, m := range autolinkPattern.FindAllSubmatchIndex(text, -1) {
		hits = append(hits, hit{m[0], string(text[m[2]:m[3]])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	refs := make([]string, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, h.target)
	}
	return refs
}

// maskCodeSpans blanks every inline code span, keeping byte offsets. A run of
// backticks opens a span closed by the next run of the same length; an
// unmatched run is literal text.
func maskCodeSpans(line string) string {
	b := []byte(line)
	for i := 0; i < len(b); {
		if b[i] != '`' {
			i++
			continue
		}
		open := runLength(b, i)
		end := -1
		for j := i + open; j < len(b); {
			if b[j] != '`' {
				j++
				continue
			}
			n := runLength(b, j)
			if n == open {
				end = j + n
				break
			}
			j += n
		}
		if end < 0 {
			i += open
			continue
		}
		blank(b[i:end])
		i = end
	}
	return string(b)
}

func runLength(b []byte, i int) int {
	n := 0
	for i+n < len(b) && b[i+n] == '`' {
		n++
	}
	return n
}

func blank(b []byte) {
	for i := range b {
		b[i] = ' '
	}
}

type mdSection struct {
	level int
	title string
	prose []string
	code  []CodeBlock
	refs  []string
}

func (s *mdSection) record() Record {
	rec := Record{Level: s.level, Title: s.title}
	body := strings.TrimSpace(strings.Join(s.prose, "\n"))
	if body == "" && len(s.code) == 0 && len(s.refs) == 0 {
		return rec
	}
	rec.Entries = []RawEntry{{
		Title:      s.title,
		Body:       body,
		CodeBlocks: s.code,
		References: s.refs,
	}}
	return rec
}
