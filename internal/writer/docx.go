package writer

import (
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/nguyentantai21042004/afterthought/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	fontName = "Times New Roman"
	fontSize = 13
	indent   = "    "
)

var markdown = goldmark.New()

// markdownToDocx lays out the note as a styled Word document: a title, an
// info line, then the summary with headings, lists and bold runs kept.
func markdownToDocx(r models.Result, outputPath string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	addRun(doc.AddParagraph(""), r.Item.Title, true, 16)
	if info := infoLine(r); info != "" {
		addRun(doc.AddParagraph(""), info, false, fontSize)
	}

	body := r.Summary.Text
	if strings.TrimSpace(body) == "" {
		body = fallbackBody(r.Item)
	}

	source := []byte(body)
	root := markdown.Parser().Parse(text.NewReader(source))
	b := docxBody{doc: doc, source: source}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		b.block(n, 0)
	}

	return doc.SaveTo(outputPath)
}

type paragraphAdder interface {
	AddParagraph(s string) *docx.Paragraph
}

// docxBody renders goldmark block nodes as document paragraphs.
type docxBody struct {
	doc    paragraphAdder
	source []byte
}

func (b docxBody) block(n ast.Node, depth int) {
	switch v := n.(type) {
	case *ast.Heading:
		addRun(b.doc.AddParagraph(""), b.plain(v), true, headingSize(v.Level))

	case *ast.Paragraph, *ast.TextBlock:
		b.paragraph(n, strings.Repeat(indent, depth))

	case *ast.List:
		num := v.Start
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if v.IsOrdered() {
				marker = fmt.Sprintf("%d. ", num)
				num++
			}
			b.listItem(item, strings.Repeat(indent, depth)+marker, depth)
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := strings.TrimRight(string(seg.Value(b.source)), "\r\n")
			addRun(b.doc.AddParagraph(""), strings.Repeat(indent, depth)+line, false, fontSize)
		}

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			b.block(c, depth+1)
		}
	}
}

// listItem puts marker before the item's first paragraph and indents the rest.
func (b docxBody) listItem(item ast.Node, marker string, depth int) {
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			prefix := strings.Repeat(indent, depth+1)
			if first {
				prefix = marker
			}
			b.paragraph(c, prefix)
			first = false
		default:
			b.block(c, depth+1)
		}
	}
}

func (b docxBody) paragraph(n ast.Node, prefix string) {
	p := b.doc.AddParagraph("")
	if prefix != "" {
		addRun(p, prefix, false, fontSize)
	}
	b.runs(p, n, false)
}

// runs emits n's inline children. Strong emphasis becomes bold; links and
// code spans keep only their text.
func (b docxBody) runs(p *docx.Paragraph, n ast.Node, bold bool) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			s := string(v.Segment.Value(b.source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				s += " "
			}
			addRun(p, s, bold, fontSize)
		case *ast.String:
			addRun(p, string(v.Value), bold, fontSize)
		case *ast.AutoLink:
			addRun(p, string(v.Label(b.source)), bold, fontSize)
		case *ast.Emphasis:
			b.runs(p, v, bold || v.Level >= 2)
		default:
			b.runs(p, c, bold)
		}
	}
}

func (b docxBody) plain(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(b.source))
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func infoLine(r models.Result) string {
	var parts []string
	if r.Item.Channel != "" {
		parts = append(parts, r.Item.Channel)
	}
	if !r.Item.PublishedAt.IsZero() {
		parts = append(parts, r.Item.PublishedAt.Format(dateLayout))
	}
	if r.Item.Duration > 0 {
		parts = append(parts, models.FormatDuration(r.Item.Duration))
	}
	return strings.Join(parts, " · ")
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 15
	case 3:
		return 14
	default:
		return fontSize
	}
}

func addRun(p *docx.Paragraph, s string, bold bool, size uint64) {
	if s == "" {
		return
	}
	run := p.AddText(s).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
