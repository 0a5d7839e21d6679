// internal/workers/attachments/decode-attachments/handler_test.go
package decodeattachments

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ==========================
// Test Helper Functions
// ==========================

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Method() string { return MethodTesseract }

func (s *stubExtractor) Extract(context.Context, string) (string, error) {
	return s.text, s.err
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeImage(t *testing.T, encode func(*bytes.Buffer, image.Image) error, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))
	return buf.Bytes()
}

// sqliteBytes builds a real database file from statements and returns its bytes.
func sqliteBytes(t *testing.T, statements ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func shopDatabase(t *testing.T) []byte {
	return sqliteBytes(t,
		"CREATE TABLE users(id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
		`CREATE TABLE IF NOT EXISTS "orders"(id INTEGER)`,
		"INSERT INTO users(name) VALUES ('ada')",
		"INSERT INTO orders(id) VALUES (1), (2)",
	)
}

func newTestHandler(t *testing.T, ocr TextExtractor) *Handler {
	cfg := DefaultConfig()
	return NewHandler(cfg, DefaultRegistry(cfg, ocr), logger.NewTestLogger(t))
}

func digestByName(t *testing.T, out *Output, name string) Digest {
	t.Helper()
	for _, d := range out.Digests {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no digest for %s", name)
	return Digest{}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Kinds(t *testing.T) {
	tests := []struct {
		name       string
		attachment models.Attachment
		wantKind   Kind
		contains   []string
	}{
		{
			name:       "csv table",
			attachment: models.Attachment{Name: "sales.csv", URL: dataURI("text/csv", []byte("region,total\nnorth,10\nsouth,20\n"))},
			wantKind:   KindTabular,
			contains:   []string{"2 rows x 2 columns", "columns: region, total", "north, 10"},
		},
		{
			name:       "tsv table",
			attachment: models.Attachment{Name: "data.tsv", URL: dataURI("text/tab-separated-values", []byte("a\tb\tc\n1\t2\t3\n"))},
			wantKind:   KindTabular,
			contains:   []string{"1 rows x 3 columns", "columns: a, b, c"},
		},
		{
			name:       "json object",
			attachment: models.Attachment{Name: "cfg.json", URL: dataURI("application/json", []byte(`{"zeta":1,"alpha":{"x":2},"mid":[1]}`))},
			wantKind:   KindMapping,
			contains:   []string{"keys: alpha, mid, zeta"},
		},
		{
			name:       "json array",
			attachment: models.Attachment{Name: "rows.json", URL: dataURI("application/json", []byte(`[{"b":1,"a":2},{"c":3}]`))},
			wantKind:   KindMapping,
			contains:   []string{"array of 2 items", "first item keys: a, b"},
		},
		{
			name:       "yaml mapping",
			attachment: models.Attachment{Name: "site.yml", URL: dataURI("application/octet-stream", []byte("title: demo\nauthor: me\n"))},
			wantKind:   KindMapping,
			contains:   []string{"keys: author, title"},
		},
		{
			name:       "markdown text",
			attachment: models.Attachment{Name: "notes.md", URL: dataURI("text/markdown", []byte("# Title\nbody\n"))},
			wantKind:   KindText,
			contains:   []string{"13 characters, 2 lines", "# Title"},
		},
		{
			name:       "text by media type family",
			attachment: models.Attachment{Name: "README", URL: "data:text/plain,hello%20world"},
			wantKind:   KindText,
			contains:   []string{"hello world"},
		},
		{
			name:       "sqlite database",
			attachment: models.Attachment{Name: "app.db", URL: dataURI("application/octet-stream", shopDatabase(t))},
			wantKind:   KindDatabase,
			contains:   []string{"SQLite database, page size", "orders: 2 rows", "users: 1 row"},
		},
		{
			name:       "unknown binary",
			attachment: models.Attachment{Name: "blob.bin", URL: dataURI("application/x-custom", []byte{0, 1, 2})},
			wantKind:   KindUnrecognized,
			contains:   []string{"application/x-custom", "3 bytes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(t, NoopExtractor{})

			out, err := handler.Execute(context.Background(), &Input{Attachments: []models.Attachment{tt.attachment}})
			require.NoError(t, err)
			require.Len(t, out.Digests, 1)

			d := out.Digests[0]
			assert.Equal(t, tt.wantKind, d.Kind, d.Summary)
			for _, s := range tt.contains {
				assert.Contains(t, d.Summary, s)
			}
			assert.Empty(t, out.Images)
		})
	}
}

func TestHandler_Execute_ImageRetainedAndOCR(t *testing.T) {
	data := pngBytes(t, 3, 2)
	uri := dataURI("image/png", data)

	t.Run("ocr disabled", func(t *testing.T) {
		handler := newTestHandler(t, NoopExtractor{})
		out, err := handler.Execute(context.Background(), &Input{
			Attachments: []models.Attachment{{Name: "shot.png", URL: uri}},
			ScratchDir:  t.TempDir(),
		})
		require.NoError(t, err)

		d := out.Digests[0]
		assert.Equal(t, KindImage, d.Kind)
		assert.Equal(t, MethodNone, d.Method)
		assert.Contains(t, d.Summary, "png image, 3x2")

		require.Len(t, out.Images, 1)
		assert.Equal(t, "image/png", out.Images[0].MediaType)
		assert.Equal(t, uri, out.Images[0].DataURI)
	})

	t.Run("ocr text capped", func(t *testing.T) {
		handler := newTestHandler(t, &stubExtractor{text: strings.Repeat("x", 800)})
		out, err := handler.Execute(context.Background(), &Input{
			Attachments: []models.Attachment{{Name: "shot.png", URL: uri}},
			ScratchDir:  t.TempDir(),
		})
		require.NoError(t, err)

		d := out.Digests[0]
		assert.Equal(t, MethodTesseract, d.Method)
		assert.Contains(t, d.Summary, strings.Repeat("x", 500)+"...")
		assert.NotContains(t, d.Summary, strings.Repeat("x", 501))
	})
}

// ==========================
// Totality / Error Tests
// ==========================

func TestHandler_Execute_IsTotal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 64
	handler := NewHandler(cfg, DefaultRegistry(cfg, NoopExtractor{}), logger.NewTestLogger(t))

	attachments := []models.Attachment{
		{Name: "good.txt", URL: dataURI("text/plain", []byte("fine"))},
		{Name: "remote.png", URL: "https://example.com/a.png"},
		{Name: "broken.csv", URL: "data:text/csv;base64,!!!not-base64!!!"},
		{Name: "big.txt", URL: dataURI("text/plain", bytes.Repeat([]byte("a"), 100))},
		{Name: "..", URL: dataURI("text/plain", []byte("x"))},
		{Name: "fake.png", URL: dataURI("image/png", []byte("not really a png"))},
		{Name: "bad.json", URL: dataURI("application/json", []byte("{"))},
		{Name: "nocomma", URL: "data:text/plain;base64"},
	}

	out, err := handler.Execute(context.Background(), &Input{Attachments: attachments, ScratchDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, out.Digests, len(attachments))

	assert.Equal(t, KindText, out.Digests[0].Kind)
	for _, d := range out.Digests[1:] {
		assert.Equal(t, KindUnavailable, d.Kind, d.Name)
		assert.NotEmpty(t, d.Reason, d.Name)
	}
	require.Len(t, out.Images, 1, "a decoded image payload is forwarded even when its header is unreadable")
	assert.Equal(t, "fake.png", out.Images[0].Name)
	assert.Contains(t, digestByName(t, out, "big.txt").Reason, ErrTooLarge.Error())
}

func TestHandler_Execute_ImagesRetainedByMediaType(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"><rect width="4" height="4"/></svg>`)
	attachments := []models.Attachment{
		{Name: "pixel.bmp", URL: dataURI("image/bmp", encodeImage(t, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) }, image.NewGray(image.Rect(0, 0, 1, 1))))},
		{Name: "scan.tiff", URL: dataURI("image/tiff", encodeImage(t, func(b *bytes.Buffer, m image.Image) error { return tiff.Encode(b, m, nil) }, image.NewRGBA(image.Rect(0, 0, 5, 4))))},
		{Name: "logo.svg", URL: dataURI("image/svg+xml", svg)},
	}

	handler := newTestHandler(t, NoopExtractor{})
	out, err := handler.Execute(context.Background(), &Input{Attachments: attachments, ScratchDir: t.TempDir()})
	require.NoError(t, err)

	tests := []struct {
		name     string
		contains string
	}{
		{name: "pixel.bmp", contains: "bmp image, 1x1"},
		{name: "scan.tiff", contains: "tiff image, 5x4"},
		{name: "logo.svg", contains: "svg image, dimensions unknown"},
	}
	for _, tt := range tests {
		d := digestByName(t, out, tt.name)
		assert.Equal(t, KindImage, d.Kind, d.Summary)
		assert.Contains(t, d.Summary, tt.contains)
	}

	require.Len(t, out.Images, 3)
	for i, att := range attachments {
		assert.Equal(t, att.Name, out.Images[i].Name)
		assert.Equal(t, att.URL, out.Images[i].DataURI)
	}
	assert.Equal(t, "image/svg+xml", out.Images[2].MediaType)
}

func TestHandler_Execute_DuplicateNamesKeptApart(t *testing.T) {
	dir := t.TempDir()
	handler := newTestHandler(t, NoopExtractor{})

	out, err := handler.Execute(context.Background(), &Input{
		Attachments: []models.Attachment{
			{Name: "a/data.csv", URL: dataURI("text/csv", []byte("x\n1\n"))},
			{Name: "b/data.csv", URL: dataURI("text/csv", []byte("y\n2\n"))},
			{Name: "data-2.csv", URL: dataURI("text/csv", []byte("z\n3\n"))},
		},
		ScratchDir: dir,
	})
	require.NoError(t, err)
	require.Len(t, out.Files, 3)

	names := []string{out.Files[0].Name, out.Files[1].Name, out.Files[2].Name}
	assert.Equal(t, []string{"data.csv", "data-2.csv", "data-2-2.csv"}, names)
	assert.Equal(t, "data-2.csv", out.Digests[1].Name)

	for i, want := range []string{"x\n1\n", "y\n2\n", "z\n3\n"} {
		content, err := os.ReadFile(out.Files[i].Path)
		require.NoError(t, err)
		assert.Equal(t, want, string(content))
	}
}

func TestUniqueName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a.txt", UniqueName("a.txt", used))
	assert.Equal(t, "a-2.txt", UniqueName("a.txt", used))
	assert.Equal(t, "a-3.txt", UniqueName("a.txt", used))
	assert.Equal(t, "Makefile", UniqueName("Makefile", used))
	assert.Equal(t, "Makefile-2", UniqueName("Makefile", used))
}

// ==========================
// Embedded database
// ==========================

func TestDatabaseDigester_IgnoresSchemaTextInRows(t *testing.T) {
	data := sqliteBytes(t,
		"CREATE TABLE notes(body TEXT)",
		"INSERT INTO notes(body) VALUES ('CREATE TABLE ghosts (id INTEGER)')",
		"INSERT INTO notes(body) VALUES ('create table phantoms(x)')",
	)

	handler := newTestHandler(t, NoopExtractor{})
	for _, scratch := range []string{t.TempDir(), ""} {
		out, err := handler.Execute(context.Background(), &Input{
			Attachments: []models.Attachment{{Name: "notes.sqlite", URL: dataURI("application/vnd.sqlite3", data)}},
			ScratchDir:  scratch,
		})
		require.NoError(t, err)

		d := out.Digests[0]
		assert.Equal(t, KindDatabase, d.Kind, d.Summary)
		assert.Contains(t, d.Summary, "notes: 2 rows")
		assert.NotContains(t, d.Summary, "ghosts")
		assert.NotContains(t, d.Summary, "phantoms")
	}
}

func TestDatabaseDigester_RowCountCapped(t *testing.T) {
	statements := []string{"CREATE TABLE events(id INTEGER)", "CREATE TABLE empty(id INTEGER)"}
	for i := 0; i < 6; i++ {
		statements = append(statements, fmt.Sprintf("INSERT INTO events(id) VALUES (%d)", i))
	}
	data := sqliteBytes(t, statements...)

	d := &databaseDigester{maxTables: 10, rowCap: 5}
	digest, err := d.Digest(context.Background(), &File{Name: "events.db", Data: data})
	require.NoError(t, err)
	assert.Contains(t, digest.Summary, "empty: 0 rows")
	assert.Contains(t, digest.Summary, "events: more than 5 rows")
	assert.NotContains(t, digest.Summary, "sqlite_")
}

func TestDatabaseDigester_RejectsNonDatabase(t *testing.T) {
	d := &databaseDigester{maxTables: 10, rowCap: 5}
	_, err := d.Digest(context.Background(), &File{Name: "x.db", Data: bytes.Repeat([]byte("x"), 200)})
	assert.Error(t, err)
}

func TestHandler_Execute_WritesScratchFiles(t *testing.T) {
	dir := t.TempDir()
	handler := newTestHandler(t, NoopExtractor{})

	out, err := handler.Execute(context.Background(), &Input{
		Attachments: []models.Attachment{
			{Name: "../../escape.txt", URL: dataURI("text/plain", []byte("hello"))},
			{Name: "blob.bin", URL: dataURI("application/x-custom", []byte{9, 9})},
		},
		ScratchDir: dir,
	})
	require.NoError(t, err)
	require.Len(t, out.Files, 2)

	assert.Equal(t, "escape.txt", out.Files[0].Name)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), out.Files[0].Path)

	content, err := os.ReadFile(out.Files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := newTestHandler(t, NoopExtractor{})
	_, err := handler.Execute(context.Background(), nil)
	assert.Error(t, err)
}

// ==========================
// Helper Tests
// ==========================

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantType  string
		wantData  string
		wantError error
	}{
		{name: "base64", uri: "data:text/plain;base64,aGVsbG8=", wantType: "text/plain", wantData: "hello"},
		{name: "base64 without padding", uri: "data:text/plain;base64,aGVsbG8", wantType: "text/plain", wantData: "hello"},
		{name: "charset parameter", uri: "data:text/csv;charset=utf-8;base64,YSxi", wantType: "text/csv", wantData: "a,b"},
		{name: "percent encoded", uri: "data:,a%2Cb", wantType: "", wantData: "a,b"},
		{name: "not a data uri", uri: "http://x", wantError: ErrNotDataURI},
		{name: "missing comma", uri: "data:text/plain", wantError: ErrMalformedDataURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, data, err := ParseDataURI(tt.uri)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, mt)
			assert.Equal(t, tt.wantData, string(data))
		})
	}
}

func TestSnippet(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "line"
	}
	twelve := strings.Join(lines, "\n") + "\n"

	assert.Equal(t, "short", Snippet("short\n", 10, 500))
	assert.Equal(t, strings.Join(lines[:10], "\n")+"...", Snippet(twelve, 10, 500))
	assert.Equal(t, "abc...", Snippet("abcdef", 10, 3))
	assert.Equal(t, "ééé...", Snippet("éééé", 0, 3))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "data.csv", want: "data.csv"},
		{in: "dir/sub/data.csv", want: "data.csv"},
		{in: `..\..\evil.txt`, want: "evil.txt"},
		{in: "..", wantErr: true},
		{in: "", wantErr: true},
		{in: "...", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidName, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRegistry_ExtensionWinsOverMediaType(t *testing.T) {
	r := DefaultRegistry(DefaultConfig(), NoopExtractor{})

	assert.Equal(t, KindTabular, r.Lookup("x.csv", "text/plain").Kind())
	assert.Equal(t, KindText, r.Lookup("x", "text/plain").Kind())
	assert.Equal(t, KindImage, r.Lookup("x", "image/bmp").Kind())
	assert.Nil(t, r.Lookup("x.bin", "application/zip"))
}
