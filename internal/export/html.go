package export

import (
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/anchorage/internal/engine"
)

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func cells(a atom.Atom, values ...string) *html.Node {
	row := element(atom.Tr)
	for _, v := range values {
		row.AppendChild(element(a, text(v)))
	}
	return row
}

// writeHTML renders rows as a standalone document holding one table.
func writeHTML(w io.Writer, rows []engine.Row) error {
	body := element(atom.Tbody)
	for _, r := range rows {
		body.AppendChild(cells(atom.Td, r.FilePath, strconv.Itoa(r.LineNumber), r.Tag, r.Text, r.ID, r.Epic))
	}

	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html,
		element(atom.Head, meta, element(atom.Title, text("Comment anchors"))),
		element(atom.Body,
			element(atom.Table,
				element(atom.Thead, cells(atom.Th, csvHeader...)),
				body,
			),
		),
	))

	if err := html.Render(w, doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
