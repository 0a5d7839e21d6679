package decodeattachments

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// Digester summarizes one decoded attachment.
type Digester interface {
	Kind() Kind
	Digest(ctx context.Context, f *File) (*Digest, error)
}

// Registry maps extensions and media types to digesters. Extension matches
// win over media type matches; "text/*" style wildcards are consulted last.
type Registry struct {
	mu          sync.RWMutex
	byExtension map[string]Digester
	byMediaType map[string]Digester
	byPrefix    map[string]Digester
}

func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]Digester),
		byMediaType: make(map[string]Digester),
		byPrefix:    make(map[string]Digester),
	}
}

// Register binds d to extensions (".csv") and media types ("text/csv",
// or "text/*" for a whole family). Later registrations replace earlier ones.
func (r *Registry) Register(d Digester, extensions []string, mediaTypes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range extensions {
		r.byExtension[strings.ToLower(ext)] = d
	}
	for _, mt := range mediaTypes {
		mt = strings.ToLower(mt)
		if prefix, ok := strings.CutSuffix(mt, "*"); ok {
			r.byPrefix[prefix] = d
			continue
		}
		r.byMediaType[mt] = d
	}
}

// Lookup returns the digester for name/mediaType, or nil when unrecognized.
func (r *Registry) Lookup(name, mediaType string) Digester {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return d
	}

	mediaType = strings.ToLower(mediaType)
	if d, ok := r.byMediaType[mediaType]; ok {
		return d
	}
	for prefix, d := range r.byPrefix {
		if strings.HasPrefix(mediaType, prefix) {
			return d
		}
	}
	return nil
}

// DefaultRegistry registers the built-in handler set.
func DefaultRegistry(cfg *Config, ocr TextExtractor) *Registry {
	r := NewRegistry()

	r.Register(&tabularDigester{sampleRows: cfg.SampleRows},
		[]string{".csv", ".tsv"},
		[]string{"text/csv", "text/tab-separated-values"})

	r.Register(&mappingDigester{},
		[]string{".json", ".yaml", ".yml"},
		[]string{"application/json", "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml"})

	r.Register(&textDigester{sampleLines: cfg.SampleLines, sampleChars: cfg.SampleChars},
		[]string{".txt", ".md", ".html", ".htm", ".js", ".css", ".py", ".xml"},
		[]string{"text/*"})

	r.Register(&imageDigester{ocr: ocr, maxChars: cfg.SampleChars},
		[]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff", ".svg"},
		[]string{"image/*"})

	r.Register(&databaseDigester{maxTables: 50, rowCap: 100000},
		[]string{".db", ".sqlite", ".sqlite3"},
		[]string{"application/vnd.sqlite3", "application/x-sqlite3"})

	return r
}
