package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const versionHeadingLevel = 2

var releaseDatePattern = regexp.MustCompile(`(.*?)\s-\s?\d{4}-\d{2}-\d{2}\s*$`)

// markdownFormat describes one flavour of Markdown changelog.
type markdownFormat struct {
	info    models.ProviderInfo
	process config.ProcessFunc
	ignored []string
}

var changesetFormat = &markdownFormat{
	info: models.ProviderInfo{Name: "changeset", Label: "Changeset"},
}

var keepAChangelogFormat = &markdownFormat{
	info: models.ProviderInfo{Name: "keep-a-changelog", Label: "Keep a Changelog"},
	process: func(title string) (string, bool) {
		return releaseDatePattern.ReplaceAllString(title, "$1"), true
	},
	ignored: []string{"Unreleased"},
}

// Markdown loads a changelog document from a local file or a URL and splits
// it into one entry per level-2 heading.
type Markdown struct {
	client *httpcache.Client
	format *markdownFormat
}

// Fetch implements Fetcher.
func (m *Markdown) Fetch(ctx context.Context, src *config.Source, meta models.CacheMeta) (*Result, error) {
	if src.IsRemote() {
		return m.fetchRemote(ctx, src, meta)
	}

	if _, err := os.Stat(src.Changelog); errors.Is(err, os.ErrNotExist) {
		return nil, models.NewUserError(fmt.Sprintf("The provided changelog file path at %s does not exist.", src.Changelog), nil)
	}
	data, err := os.ReadFile(src.Changelog)
	if err != nil {
		return nil, models.NewUserError(fmt.Sprintf("Failed to read the changelog file at %s", src.Changelog), err)
	}
	return &Result{Modified: true, Entries: m.Parse(src, data), Mode: Upsert}, nil
}

func (m *Markdown) fetchRemote(ctx context.Context, src *config.Source, meta models.CacheMeta) (*Result, error) {
	resp, err := m.client.Get(ctx, src.Changelog, nil, meta)
	if err != nil {
		var se *httpcache.StatusError
		if errors.As(err, &se) {
			err = fmt.Errorf("failed to fetch data from %s: %d - %s", src.Changelog, se.Status, se.StatusText)
		}
		return nil, models.NewUserError(fmt.Sprintf("Failed to read the changelog file at %s", src.Changelog), err)
	}
	if resp.NotModified {
		return Unmodified(), nil
	}
	return &Result{Modified: true, Entries: m.Parse(src, resp.Body), Meta: resp.Meta, Mode: Upsert}, nil
}

// Parse splits a changelog document into version entries in document order.
func (m *Markdown) Parse(src *config.Source, source []byte) []*models.VersionEntry {
	process := src.Process
	if process == nil {
		process = m.format.process
	}

	var entries []*models.VersionEntry
	for _, sec := range splitSections(source, versionHeadingLevel) {
		entry := newEntry(src, process, sec.title, sec.body, m.format.info)
		if entry == nil || entry.Title == "" || m.ignored(entry.Title) {
			continue
		}
		entry.Digest = Digest(entry.ID, entry.Body)
		entries = append(entries, entry)
	}
	return entries
}

func (m *Markdown) ignored(title string) bool {
	for _, v := range m.format.ignored {
		if v == title {
			return true
		}
	}
	return false
}

type section struct {
	title string
	body  string
}

// splitSections walks the top-level blocks of a document and opens a new
// section at every heading of the given level. A section body is the source
// text between its heading and the next one.
func splitSections(source []byte, level int) []section {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var (
		sections []section
		current  *section
		bodyFrom int
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != level {
			continue
		}
		start, end := headingBounds(h, source, bodyFrom, level)
		if current != nil {
			current.body = strings.TrimSpace(string(source[bodyFrom:start]))
			sections = append(sections, *current)
		}
		current = &section{title: headingText(h, source)}
		bodyFrom = end
	}
	if current != nil {
		current.body = strings.TrimSpace(string(source[bodyFrom:]))
		sections = append(sections, *current)
	}
	return sections
}

// headingBounds returns the offset of the first line of h and the offset just
// past its last line (including a setext underline).
func headingBounds(h *ast.Heading, source []byte, from, level int) (int, int) {
	lines := h.Lines()
	if lines.Len() == 0 {
		// empty ATX heading such as "##"
		start := findATXLine(source, from, level)
		return start, lineEnd(source, start)
	}

	start := lineStart(source, lines.At(0).Start)
	stop := lines.At(lines.Len() - 1).Stop
	if stop > start {
		stop--
	}
	end := lineEnd(source, stop)
	if !isATX(source[start:]) {
		end = lineEnd(source, end)
	}
	return start, end
}

func lineStart(source []byte, pos int) int {
	return bytes.LastIndexByte(source[:pos], '\n') + 1
}

// lineEnd returns the offset just past the newline ending the line at pos.
func lineEnd(source []byte, pos int) int {
	if pos >= len(source) {
		return len(source)
	}
	i := bytes.IndexByte(source[pos:], '\n')
	if i < 0 {
		return len(source)
	}
	return pos + i + 1
}

func isATX(line []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(line, " "), []byte("#"))
}

func findATXLine(source []byte, from, level int) int {
	marker := strings.Repeat("#", level)
	for pos := from; pos < len(source); pos = lineEnd(source, pos) {
		line := source[pos:lineEnd(source, pos)]
		trimmed := bytes.TrimLeft(line, " ")
		if !bytes.HasPrefix(trimmed, []byte(marker)) {
			continue
		}
		rest := trimmed[len(marker):]
		if len(rest) == 0 || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r' {
			return pos
		}
	}
	return len(source)
}

// headingText concatenates the literal text of a heading's inline content.
func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
