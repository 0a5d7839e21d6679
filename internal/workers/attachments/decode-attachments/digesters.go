package decodeattachments

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// ==========================
// Tabular
// ==========================

type tabularDigester struct {
	sampleRows int
}

func (d *tabularDigester) Kind() Kind { return KindTabular }

func (d *tabularDigester) Digest(_ context.Context, f *File) (*Digest, error) {
	reader := csv.NewReader(bytes.NewReader(f.Data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(f.Name), ".tsv") || f.MediaType == "text/tab-separated-values" {
		reader.Comma = '\t'
	}

	var header []string
	var sample [][]string
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse table: %w", err)
		}
		if header == nil {
			header = record
			continue
		}
		rows++
		if len(sample) < d.sampleRows {
			sample = append(sample, record)
		}
	}
	if header == nil {
		return nil, errors.New("table has no header row")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d rows x %d columns\n", rows, len(header))
	fmt.Fprintf(&b, "columns: %s\n", strings.Join(header, ", "))
	if len(sample) > 0 {
		b.WriteString("sample rows:\n")
		for _, row := range sample {
			fmt.Fprintf(&b, "  %s\n", strings.Join(row, ", "))
		}
	}

	return &Digest{Kind: KindTabular, Summary: strings.TrimRight(b.String(), "\n")}, nil
}

// ==========================
// Mapping (JSON / YAML)
// ==========================

type mappingDigester struct{}

func (d *mappingDigester) Kind() Kind { return KindMapping }

func (d *mappingDigester) Digest(_ context.Context, f *File) (*Digest, error) {
	var doc interface{}
	ext := strings.ToLower(filepath.Ext(f.Name))
	isJSON := ext == ".json" || (ext != ".yaml" && ext != ".yml" && strings.Contains(f.MediaType, "json"))

	if isJSON {
		if err := json.Unmarshal(f.Data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(f.Data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	return &Digest{Kind: KindMapping, Summary: describeMapping(doc)}, nil
}

func describeMapping(doc interface{}) string {
	switch v := doc.(type) {
	case []interface{}:
		summary := fmt.Sprintf("array of %d items", len(v))
		if len(v) > 0 {
			if keys := mappingKeys(v[0]); keys != nil {
				summary += fmt.Sprintf("; first item keys: %s", strings.Join(keys, ", "))
			}
		}
		return summary
	default:
		if keys := mappingKeys(v); keys != nil {
			return fmt.Sprintf("keys: %s", strings.Join(keys, ", "))
		}
		return fmt.Sprintf("scalar value of type %T", v)
	}
}

func mappingKeys(v interface{}) []string {
	var keys []string
	switch m := v.(type) {
	case map[string]interface{}:
		keys = make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
	case map[interface{}]interface{}:
		keys = make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, fmt.Sprint(k))
		}
	default:
		return nil
	}
	sort.Strings(keys)
	return keys
}

// ==========================
// Text
// ==========================

type textDigester struct {
	sampleLines int
	sampleChars int
}

func (d *textDigester) Kind() Kind { return KindText }

func (d *textDigester) Digest(_ context.Context, f *File) (*Digest, error) {
	if !utf8.Valid(f.Data) {
		return nil, errors.New("text is not valid UTF-8")
	}
	text := string(f.Data)
	lines := strings.Split(text, "\n")
	if strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}

	sample := Snippet(text, d.sampleLines, d.sampleChars)

	return &Digest{
		Kind:    KindText,
		Summary: fmt.Sprintf("%d characters, %d lines\nsample:\n%s", utf8.RuneCountInString(text), len(lines), sample),
	}, nil
}

// Snippet returns at most maxLines lines and maxChars runes of text, with a
// trailing "..." when anything was cut.
func Snippet(text string, maxLines, maxChars int) string {
	lines := strings.SplitAfter(text, "\n")
	cut := false
	if maxLines > 0 && len(lines) > maxLines {
		rest := strings.Join(lines[maxLines:], "")
		cut = strings.TrimSpace(rest) != ""
		lines = lines[:maxLines]
	}
	out := strings.TrimRight(strings.Join(lines, ""), "\n")

	if maxChars > 0 && utf8.RuneCountInString(out) > maxChars {
		out = string([]rune(out)[:maxChars])
		cut = true
	}
	if cut {
		out += "..."
	}
	return out
}

// ==========================
// Image
// ==========================

type imageDigester struct {
	ocr      TextExtractor
	maxChars int
}

func (d *imageDigester) Kind() Kind { return KindImage }

func (d *imageDigester) Digest(ctx context.Context, f *File) (*Digest, error) {
	format := imageFormat(f.MediaType)
	dims := "dimensions unknown"

	cfg, decodedFormat, err := image.DecodeConfig(bytes.NewReader(f.Data))
	switch {
	case err == nil:
		format = decodedFormat
		dims = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	case errors.Is(err, image.ErrFormat) && !decodableImageTypes[f.MediaType]:
		// svg, ico, avif and friends: described by media type only.
	default:
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	method := MethodNone
	text := ""
	if d.ocr != nil && f.Path != "" {
		extracted, err := d.ocr.Extract(ctx, f.Path)
		if err == nil {
			method = d.ocr.Method()
			text = Snippet(extracted, 0, d.maxChars)
		}
	}

	summary := fmt.Sprintf("%s image, %s\ntext extraction: %s", format, dims, method)
	if text != "" {
		summary += fmt.Sprintf("\nextracted text:\n%s", text)
	}

	return &Digest{Kind: KindImage, Summary: summary, Method: method}, nil
}

// decodableImageTypes have a registered header decoder; bytes that fail to
// decode under one of these are corrupt rather than merely unsupported.
var decodableImageTypes = map[string]bool{
	"image/png":      true,
	"image/jpeg":     true,
	"image/jpg":      true,
	"image/gif":      true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
	"image/tiff":     true,
	"image/webp":     true,
}

func imageFormat(mediaType string) string {
	format := strings.TrimPrefix(mediaType, "image/")
	format = strings.TrimSuffix(format, "+xml")
	if format == "" {
		return "unknown"
	}
	return format
}

// ==========================
// Embedded database (SQLite)
// ==========================

const sqliteMagic = "SQLite format 3\x00"

type databaseDigester struct {
	maxTables int
	rowCap    int
}

func (d *databaseDigester) Kind() Kind { return KindDatabase }

func (d *databaseDigester) Digest(ctx context.Context, f *File) (*Digest, error) {
	if len(f.Data) < 100 || string(f.Data[:16]) != sqliteMagic {
		return nil, errors.New("missing SQLite header")
	}

	pageSize := int(binary.BigEndian.Uint16(f.Data[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	pageCount := binary.BigEndian.Uint32(f.Data[28:32])

	path := f.Path
	if path == "" {
		tmp, err := os.CreateTemp("", "appdeployer-db-*")
		if err != nil {
			return nil, fmt.Errorf("stage database: %w", err)
		}
		defer os.Remove(tmp.Name())
		_, werr := tmp.Write(f.Data)
		cerr := tmp.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return nil, fmt.Errorf("stage database: %w", err)
		}
		path = tmp.Name()
	}

	tables, err := d.inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SQLite database, page size %d, %d pages\n", pageSize, pageCount)
	if len(tables) == 0 {
		b.WriteString("tables: none found")
	} else {
		b.WriteString("tables:")
		for _, t := range tables {
			fmt.Fprintf(&b, "\n  %s: %s", t.name, t.rows)
		}
	}

	return &Digest{Kind: KindDatabase, Summary: b.String()}, nil
}

type tableInfo struct {
	name string
	rows string
}

// inspect opens path read-only and lists user tables with capped row counts.
func (d *databaseDigester) inspect(ctx context.Context, path string) ([]tableInfo, error) {
	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro&immutable=1"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name LIMIT ?`,
		d.maxTables)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read schema: %w", err)
		}
		names = append(names, name)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	tables := make([]tableInfo, 0, len(names))
	for _, name := range names {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT ?)", quoteIdent(name))
		if err := db.QueryRowContext(ctx, query, d.rowCap+1).Scan(&count); err != nil {
			tables = append(tables, tableInfo{name: name, rows: "row count unavailable"})
			continue
		}
		tables = append(tables, tableInfo{name: name, rows: describeRows(count, d.rowCap)})
	}
	return tables, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func describeRows(count, limit int) string {
	switch {
	case count > limit:
		return fmt.Sprintf("more than %d rows", limit)
	case count == 1:
		return "1 row"
	default:
		return fmt.Sprintf("%d rows", count)
	}
}
