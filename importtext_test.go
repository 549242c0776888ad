package printkit

import (
	"bytes"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextPlain(t *testing.T) {
	got, err := ExtractText("notes.TXT", []byte("  First line.  \r\n\r\n\r\n\r\nSecond line.\t\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "First line.\n\nSecond line.", got)

	got, err = ExtractText("readme.md", []byte("# Title\n\n- item"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n- item", got, "markdown is kept as source")
}

func TestExtractTextHTML(t *testing.T) {
	got, err := ExtractText("page.html", []byte(`<html><head><style>p{}</style></head><body><p>Hello <b>world</b></p><script>x()</script></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
}

func TestExtractTextDOCX(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("Objective")
	w.AddParagraph().AddText("Build things.").Bold()
	w.AddParagraph()
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ExtractText("cv.docx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Objective\n\nBuild things.", got)
}

func TestExtractTextErrors(t *testing.T) {
	_, err := ExtractText("sheet.xlsx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedImport)

	_, err = ExtractText("broken.pdf", []byte("not a pdf"))
	assert.ErrorContains(t, err, "broken.pdf")

	_, err = ExtractText("broken.docx", []byte("not a zip"))
	assert.ErrorContains(t, err, "broken.docx")
}

func TestSessionImportText(t *testing.T) {
	s := newCardSession(t)

	require.NoError(t, s.ImportText("bio", "bio.txt", []byte("Line one\n\n\n\nLine two")))
	assert.Equal(t, "Line one\n\nLine two", s.Snapshot().String("bio"))
	assert.Equal(t, uint64(1), s.Revision())

	assert.ErrorIs(t, s.ImportText("rows", "a.txt", []byte("x")), ErrFieldType)
	assert.ErrorIs(t, s.ImportText("photo", "a.txt", []byte("x")), ErrFieldType)
	assert.ErrorIs(t, s.ImportText("nope", "a.txt", []byte("x")), ErrUnknownField)
	assert.ErrorIs(t, s.ImportText("bio", "a.xlsx", []byte("x")), ErrUnsupportedImport)
	assert.Equal(t, uint64(1), s.Revision())
}
