package printkit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/fumiama/go-docx"
	"golang.org/x/net/html"
)

// exportDOC wraps the preview in the HTML dialect Word opens as a .doc.
func exportDOC(_ context.Context, job Job) (*Artifact, error) {
	doc := job.Preview.HTML
	if doc == "" {
		return nil, fmt.Errorf("no preview to export")
	}
	doc = strings.Replace(doc, "<html ",
		`<html xmlns:o="urn:schemas-microsoft-com:office:office" `+
			`xmlns:w="urn:schemas-microsoft-com:office:word" `+
			`xmlns="http://www.w3.org/TR/REC-html40" `, 1)
	doc = strings.Replace(doc, "<head>",
		"<head>\n<!--[if gte mso 9]><xml><w:WordDocument><w:View>Print</w:View>"+
			"<w:Zoom>100</w:Zoom></w:WordDocument></xml><![endif]-->", 1)
	return NewArtifact(DOC, job.Filename, []byte(doc)), nil
}

// exportDOCX writes the document fields as a Word document: a title, one
// paragraph per text field, a table per list field and inline images.
func exportDOCX(_ context.Context, job Job) (*Artifact, error) {
	if job.Schema == nil {
		return nil, fmt.Errorf("no schema")
	}
	w := docx.New().WithDefaultTheme().WithA4Page()

	title := job.Title
	if title == "" {
		title = job.Tool
	}
	w.AddParagraph().Justification("center").AddText(title).Bold().Size("32")

	for _, f := range job.Schema.Fields {
		switch f.Kind {
		case KindList:
			rows := job.Snapshot.List(f.Name)
			if len(rows) == 0 || len(f.Columns) == 0 {
				continue
			}
			w.AddParagraph().AddText(labelOf(f)).Bold()
			tbl := w.AddTable(len(rows)+1, len(f.Columns), 0, nil)
			for c, col := range f.Columns {
				tbl.TableRows[0].TableCells[c].AddParagraph().AddText(col).Bold()
			}
			for r, row := range rows {
				for c, col := range f.Columns {
					tbl.TableRows[r+1].TableCells[c].AddParagraph().AddText(row[col])
				}
			}
		case KindImage:
			pic, ok := decodeDataURI(job.Snapshot.String(f.Name))
			if !ok {
				continue
			}
			if _, err := w.AddParagraph().AddInlineDrawing(pic); err != nil {
				return nil, fmt.Errorf("embedding %s: %w", f.Name, err)
			}
		case KindColor:
			// cosmetic only
		default:
			text := plainValue(f, job.Snapshot)
			if text == "" {
				continue
			}
			p := w.AddParagraph()
			p.AddText(labelOf(f) + ": ").Bold()
			p.AddText(text)
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing docx: %w", err)
	}
	return NewArtifact(DOCX, job.Filename, buf.Bytes()), nil
}

// exportCSV writes list fields as tables. Tools without list fields get
// one "field,value" row per text field.
func exportCSV(_ context.Context, job Job) (*Artifact, error) {
	if job.Schema == nil {
		return nil, fmt.Errorf("no schema")
	}
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	lists := 0
	for _, f := range job.Schema.Fields {
		if f.Kind != KindList || len(f.Columns) == 0 {
			continue
		}
		if lists > 0 {
			cw.Write(nil)
		}
		lists++
		cw.Write(f.Columns)
		for _, row := range job.Snapshot.List(f.Name) {
			rec := make([]string, len(f.Columns))
			for i, col := range f.Columns {
				rec[i] = row[col]
			}
			cw.Write(rec)
		}
	}
	if lists == 0 {
		cw.Write([]string{"field", "value"})
		for _, f := range job.Schema.Fields {
			if f.Kind == KindImage {
				continue
			}
			cw.Write([]string{f.Name, job.Snapshot.String(f.Name)})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return NewArtifact(CSV, job.Filename, buf.Bytes()), nil
}

type jsonExport struct {
	Tool     string         `json:"tool"`
	Revision uint64         `json:"revision"`
	Fields   map[string]any `json:"fields"`
}

func exportJSON(_ context.Context, job Job) (*Artifact, error) {
	data, err := json.MarshalIndent(jsonExport{
		Tool:     job.Tool,
		Revision: job.Snapshot.Revision(),
		Fields:   job.Snapshot.Fields(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return NewArtifact(JSON, job.Filename, data), nil
}

// exportSVG embeds the preview element in an SVG foreignObject. Viewers
// without foreignObject support show an empty canvas.
func exportSVG(_ context.Context, job Job) (*Artifact, error) {
	css, preview, err := previewNode(job.Preview.HTML)
	if err != nil {
		return nil, err
	}
	w, h := job.Page.pixelSize()

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	b.WriteString(`<foreignObject x="0" y="0" width="100%" height="100%">`)
	b.WriteString(`<div xmlns="http://www.w3.org/1999/xhtml">`)
	b.WriteString("<style><![CDATA[\n")
	b.WriteString(strings.ReplaceAll(css, "]]>", "]]]]><![CDATA[>"))
	b.WriteString("\n]]></style>")
	writeXHTML(&b, preview)
	b.WriteString(`</div></foreignObject></svg>`)
	return NewArtifact(SVG, job.Filename, []byte(b.String())), nil
}

func exportMarkdown(_ context.Context, job Job) (*Artifact, error) {
	_, body, err := previewFragment(job.Preview.HTML)
	if err != nil {
		return nil, err
	}
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("converting to markdown: %w", err)
	}
	return NewArtifact(Markdown, job.Filename, []byte(md+"\n")), nil
}

// previewFragment returns the stylesheet text and the serialized
// #preview element of a rendered preview document.
func previewFragment(doc string) (css, body string, err error) {
	css, preview, err := previewNode(doc)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, preview); err != nil {
		return "", "", fmt.Errorf("serializing preview: %w", err)
	}
	return css, buf.String(), nil
}

// previewNode returns the stylesheet text and the #preview element of a
// rendered preview document.
func previewNode(doc string) (string, *html.Node, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", nil, fmt.Errorf("parsing preview: %w", err)
	}
	var styles []string
	var preview *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "style" && n.FirstChild != nil {
				styles = append(styles, n.FirstChild.Data)
			}
			if preview == nil && attr(n, "id") == "preview" {
				preview = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if preview == nil {
		return "", nil, fmt.Errorf("preview element not found")
	}
	return strings.Join(styles, "\n"), preview, nil
}

// voidElements never have content and are self-closed in XHTML.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// writeXHTML serializes n as well-formed XML. html.Render output is not:
// it leaves void elements open and may emit HTML-only entities.
func writeXHTML(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if p := n.Parent; p != nil && (p.Data == "style" || p.Data == "script") {
			b.WriteString("<![CDATA[")
			b.WriteString(strings.ReplaceAll(n.Data, "]]>", "]]]]><![CDATA[>"))
			b.WriteString("]]>")
			return
		}
		xml.EscapeText(b, []byte(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	b.WriteString("<" + n.Data)
	if n.Namespace == "svg" && (n.Parent == nil || n.Parent.Namespace != "svg") {
		b.WriteString(` xmlns="http://www.w3.org/2000/svg"`)
	}
	for _, a := range n.Attr {
		if a.Namespace != "" || !xmlName(a.Key) || a.Key == "xmlns" {
			continue
		}
		b.WriteString(" " + a.Key + `="`)
		xml.EscapeText(b, []byte(a.Val))
		b.WriteString(`"`)
	}
	if n.FirstChild == nil && (voidElements[n.Data] || n.Namespace == "svg") {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeXHTML(b, c)
	}
	b.WriteString("</" + n.Data + ">")
}

// xmlName reports whether s is a plain XML attribute name.
func xmlName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func labelOf(f FieldSpec) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// plainValue returns the field as plain text; markup kinds are flattened.
func plainValue(f FieldSpec, snap Snapshot) string {
	s := snap.String(f.Name)
	if isBlank(s) {
		return ""
	}
	switch f.Kind {
	case KindMarkdown:
		return htmlText(string(renderMarkdown(s)))
	case KindRichText:
		return htmlText(richPolicy.Sanitize(s))
	}
	return strings.TrimSpace(s)
}

func decodeDataURI(uri string) ([]byte, bool) {
	const marker = ";base64,"
	if !strings.HasPrefix(uri, "data:") {
		return nil, false
	}
	i := strings.Index(uri, marker)
	if i < 0 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(uri[i+len(marker):])
	if err != nil {
		return nil, false
	}
	return data, true
}
