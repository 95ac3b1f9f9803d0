package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New().Parser()

// RenderMarkdown turns markdown into styled terminal text. width <= 0
// disables wrapping. Raw HTML is dropped.
func RenderMarkdown(src string, width int) string {
	source := []byte(src)
	doc := mdParser.Parse(text.NewReader(source))
	r := mdRenderer{src: source, width: width}
	return strings.Join(r.blocks(doc), "\n\n")
}

type mdRenderer struct {
	src   []byte
	width int
}

func (r mdRenderer) blocks(parent ast.Node) []string {
	var out []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := r.block(n); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (r mdRenderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Heading:
		return mdHeadingStyle.Render(strings.TrimSpace(r.inline(n)))
	case *ast.Paragraph, *ast.TextBlock:
		return r.wrap(strings.TrimSpace(r.inline(n)))
	case *ast.List:
		return r.list(n)
	case *ast.FencedCodeBlock:
		return r.code(n.Lines())
	case *ast.CodeBlock:
		return r.code(n.Lines())
	case *ast.Blockquote:
		inner := strings.Join(r.blocks(n), "\n")
		lines := strings.Split(inner, "\n")
		for i, ln := range lines {
			lines[i] = "│ " + ln
		}
		return mdQuoteStyle.Render(strings.Join(lines, "\n"))
	case *ast.ThematicBreak:
		w := r.width
		if w <= 0 || w > 40 {
			w = 40
		}
		return mutedStyle.Render(strings.Repeat("─", w))
	case *ast.HTMLBlock:
		return ""
	}
	return strings.TrimSpace(r.inline(n))
}

func (r mdRenderer) list(l *ast.List) string {
	var items []string
	num := l.Start
	if num == 0 {
		num = 1
	}
	for it := l.FirstChild(); it != nil; it = it.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		body := strings.Join(r.blocks(it), "\n")
		pad := strings.Repeat(" ", len([]rune(marker)))
		lines := strings.Split(body, "\n")
		for i := range lines {
			if i == 0 {
				lines[i] = accentStyle.Render(marker) + lines[i]
			} else {
				lines[i] = pad + lines[i]
			}
		}
		items = append(items, strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n")
}

func (r mdRenderer) code(lines *text.Segments) string {
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		ln := strings.TrimRight(string(seg.Value(r.src)), "\n")
		out = append(out, "  "+mdCodeStyle.Render(ln))
	}
	return strings.Join(out, "\n")
}

func (r mdRenderer) inline(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(r.span(c))
	}
	return b.String()
}

func (r mdRenderer) span(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Text:
		s := string(n.Segment.Value(r.src))
		switch {
		case n.HardLineBreak():
			s += "\n"
		case n.SoftLineBreak():
			s += " "
		}
		return s
	case *ast.String:
		return string(n.Value)
	case *ast.CodeSpan:
		return mdCodeStyle.Render(r.inline(n))
	case *ast.Emphasis:
		if n.Level >= 2 {
			return mdStrongStyle.Render(r.inline(n))
		}
		return mdEmStyle.Render(r.inline(n))
	case *ast.Link:
		label := r.inline(n)
		dest := string(n.Destination)
		if dest == "" || dest == label {
			return mdLinkStyle.Render(label)
		}
		return mdLinkStyle.Render(label) + mutedStyle.Render(" ("+dest+")")
	case *ast.AutoLink:
		return mdLinkStyle.Render(string(n.URL(r.src)))
	case *ast.Image:
		return mutedStyle.Render("[image: " + r.inline(n) + "]")
	case *ast.RawHTML:
		return ""
	}
	return r.inline(n)
}

func (r mdRenderer) wrap(s string) string {
	if r.width <= 0 || lipgloss.Width(s) <= r.width {
		return s
	}
	return lipgloss.NewStyle().Width(r.width).Render(s)
}
