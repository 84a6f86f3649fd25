package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"rsc.io/pdf"

	"github.com/book-tutor/backend/pkg/logger"
)

// ErrSourceNotFound means the referenced book file does not exist in the
// novels directory. Terminal for the turn, never a crash.
var ErrSourceNotFound = errors.New("book source file not found")

var whitespaceRe = regexp.MustCompile(`\s+`)

// Source resolves document identifiers against the novels directory and
// extracts plain text from the supported book formats.
type Source struct {
	novelsDir string
	maxPages  int
}

func NewSource(novelsDir string, maxPages int) *Source {
	return &Source{
		novelsDir: novelsDir,
		maxPages:  maxPages,
	}
}

// Resolve maps a document name (the book file name) to a readable path.
func (s *Source) Resolve(documentName string) (string, error) {
	name := filepath.Base(documentName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", ErrSourceNotFound
	}

	path := filepath.Join(s.novelsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	return path, nil
}

// DocumentID derives the stable identity of a book from its file name,
// independent of directory layout. Repeated ingestion of the same file
// yields the same ID.
func DocumentID(documentName string) string {
	base := filepath.Base(documentName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractText reads the whole book as plain text. PDF pages beyond the page
// cap are skipped; a cap of zero reads everything.
func (s *Source) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return s.extractPDF(path)
	case ".html", ".htm":
		return s.extractHTML(path)
	default:
		return s.extractPlain(path)
	}
}

func (s *Source) extractPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := r.NumPage()
	if s.maxPages > 0 && pages > s.maxPages {
		pages = s.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, t := range p.Content().Text {
			sb.WriteString(strings.ReplaceAll(t.S, "\x00", ""))
		}
		sb.WriteString("\n")
	}

	logger.Debug("PDF text extracted",
		zap.String("path", path),
		zap.Int("pages", pages),
	)

	return sb.String(), nil
}

func (s *Source) extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text), nil
}

func (s *Source) extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
