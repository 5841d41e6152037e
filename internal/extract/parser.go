package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/careervec/internal/fileid"
	"github.com/hyperjump/careervec/internal/models"
	"go.uber.org/zap"
)

// Parser reads supported files into ParsedDocuments.
type Parser struct {
	extractor *Extractor
	logger    *zap.Logger
}

// NewParser returns a parser. A nil logger disables logging.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{extractor: NewExtractor(), logger: logger}
}

// ParseFile extracts the text of one file together with its file metadata.
func (p *Parser) ParseFile(path string) (*models.ParsedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrPathInvalid, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(ext) {
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, ext, filepath.Base(path))
	}

	content, err := p.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	absPath := path
	if abs, err := filepath.Abs(path); err == nil {
		absPath = abs
	}
	return &models.ParsedDocument{
		ID:      fileid.DocumentID(absPath),
		Content: content,
		Format:  ext,
		Metadata: models.DocumentMetadata{
			FilePath: absPath,
			FileName: info.Name(),
			FileSize: info.Size(),
			Format:   ext,
			ModTime:  info.ModTime(),
		},
	}, nil
}

// ParseDirectory parses every supported file directly inside dir, in name order.
// Subdirectories are not visited. A file that fails is logged and reported in the
// returned errors; the remaining files are still parsed.
func (p *Parser) ParseDirectory(dir string) ([]*models.ParsedDocument, []error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, []error{fmt.Errorf("%w: not a directory: %s", ErrPathInvalid, dir)}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read directory %s: %w", dir, err)}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []*models.ParsedDocument
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(filepath.Ext(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := p.ParseFile(path)
		if err != nil {
			p.logger.Warn("failed to parse document", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		p.logger.Debug("parsed document",
			zap.String("file", doc.Metadata.FileName),
			zap.Int("chars", len([]rune(doc.Content))))
		docs = append(docs, doc)
	}
	return docs, errs
}

// Profile is the combined profile.json written after parsing.
type Profile struct {
	Sections []ProfileSection `json:"sections"`
	Metadata ProfileMetadata  `json:"metadata"`
}

// ProfileSection is one parsed document in the profile.
type ProfileSection struct {
	Source   string                  `json:"source"`
	Content  string                  `json:"content"`
	Metadata models.DocumentMetadata `json:"metadata"`
}

// ProfileMetadata summarizes the profile.
type ProfileMetadata struct {
	TotalDocuments int      `json:"total_documents"`
	DocumentTypes  []string `json:"document_types"`
}

// BuildProfile combines parsed documents into a Profile, keeping their order.
func BuildProfile(docs []*models.ParsedDocument) *Profile {
	profile := &Profile{
		Sections: make([]ProfileSection, 0, len(docs)),
		Metadata: ProfileMetadata{
			TotalDocuments: len(docs),
			DocumentTypes:  make([]string, 0, len(docs)),
		},
	}
	for _, doc := range docs {
		profile.Sections = append(profile.Sections, ProfileSection{
			Source:   doc.Metadata.FileName,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
		profile.Metadata.DocumentTypes = append(profile.Metadata.DocumentTypes, doc.Format)
	}
	return profile
}

// WriteProfile writes the profile of docs to path as indented JSON, creating the parent directory.
func WriteProfile(docs []*models.ParsedDocument, path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildProfile(docs)); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
