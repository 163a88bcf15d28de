package extensions

import (
	"strings"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	goldext "github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"golang.org/x/net/html"
)

const (
	nodeTable     = "table"
	nodeTableRow  = "table_row"
	nodeTableCell = "table_cell"

	AttrCellHeader = "header"
	AttrCellAlign  = "align"
)

// Table declares pipe tables with an optional header row and per-column alignment.
func Table() extension.Unit {
	return extension.Unit{
		Name:     "table",
		Requires: []string{"base"},
		Apply:    applyTable,
	}
}

func applyTable(b *extension.Builder, _ extension.Options) error {
	b.ConfigureMarkupParser(goldext.Table)

	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeTable,
			Content:  nodeTableRow + "+",
			Group:    "block",
			ParseDOM: []schema.DOMRule{{Selector: "table"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("table", nil))
			},
		},
		FromMarkup: []markup.ParseHandler{{Kind: extast.KindTable, Parse: parseTable}},
		ToMarkup:   serializeTable,
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeTableRow,
			Content:  nodeTableCell + "+",
			ParseDOM: []schema.DOMRule{{Selector: "tr"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("tr", nil))
			},
		},
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:    nodeTableCell,
			Content: "inline*",
			Attrs: map[string]schema.AttributeSpec{
				AttrCellHeader: schema.Attr(false),
				AttrCellAlign:  schema.Attr(""),
			},
			ParseDOM: []schema.DOMRule{
				{Selector: "th", GetAttrs: cellAttrs(true)},
				{Selector: "td", GetAttrs: cellAttrs(false)},
			},
			ToDOM: func(node schema.Node) schema.DOMOutput {
				tag := "td"
				if header, _ := node.Attrs[AttrCellHeader].(bool); header {
					tag = "th"
				}
				var attrs map[string]string
				if align := node.GetStringAttr(AttrCellAlign, ""); align != "" {
					attrs = map[string]string{"align": align}
				}
				return schema.Hole(schema.Elem(tag, attrs))
			},
		},
	})

	b.AddAction("table", extension.InsertBlock(func(s *schema.Schema) (schema.Node, error) {
		var rows []schema.Node
		for r := 0; r < 2; r++ {
			var cells []schema.Node
			for c := 0; c < 2; c++ {
				cell, err := s.Node(nodeTableCell, map[string]interface{}{AttrCellHeader: r == 0})
				if err != nil {
					return schema.Node{}, err
				}
				cells = append(cells, cell)
			}
			row, err := s.Node(nodeTableRow, nil, cells...)
			if err != nil {
				return schema.Node{}, err
			}
			rows = append(rows, row)
		}
		return s.Node(nodeTable, nil, rows...)
	}))
	b.AddMarkupAction("table", extension.InsertMarkupBlock("|  |  |\n| --- | --- |\n|  |  |"))
	b.TrackFormatting(nodeTable)
	return nil
}

func cellAttrs(header bool) func(el *html.Node) (map[string]interface{}, bool) {
	return func(el *html.Node) (map[string]interface{}, bool) {
		align := attrValue(el, "align")
		if align == "" {
			align = styleAlign(attrValue(el, "style"))
		}
		return map[string]interface{}{AttrCellHeader: header, AttrCellAlign: align}, true
	}
}

func styleAlign(style string) string {
	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(key) == "text-align" {
			return strings.TrimSpace(value)
		}
	}

	return ""
}

func alignmentName(alignment extast.Alignment) string {
	if alignment == extast.AlignNone {
		return ""
	}

	return alignment.String()
}

func parseTable(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	table := schema.Node{Type: nodeTable}
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*extast.TableHeader)
		tableRow := schema.Node{Type: nodeTableRow}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tableCell, ok := cell.(*extast.TableCell)
			if !ok {
				continue
			}
			content, err := state.InlineChildren(tableCell)
			if err != nil {
				return nil, err
			}
			tableRow.Content = append(tableRow.Content, schema.Node{
				Type: nodeTableCell,
				Attrs: map[string]interface{}{
					AttrCellHeader: header,
					AttrCellAlign:  alignmentName(tableCell.Alignment),
				},
				Content: content,
			})
		}
		if len(tableRow.Content) > 0 {
			table.Content = append(table.Content, tableRow)
		}
	}
	if len(table.Content) == 0 {
		return nil, nil
	}

	return []schema.Node{table}, nil
}

// flattenCell replaces line breaks, which a pipe row cannot hold, with spaces.
func flattenCell(cell schema.Node) (schema.Node, bool) {
	changed := false
	content := make([]schema.Node, 0, len(cell.Content))
	for _, child := range cell.Content {
		switch {
		case child.Type == nodeHardBreak:
			child = schema.Node{Type: nodeText, Text: " ", Marks: child.Marks}
			changed = true
		case child.IsText() && strings.Contains(child.Text, "\n"):
			child.Text = strings.ReplaceAll(child.Text, "\n", " ")
			changed = true
		}
		content = append(content, child)
	}
	cell.Content = content
	return cell, changed
}

func delimiterCell(align string) string {
	switch align {
	case "left":
		return ":---"
	case "center":
		return ":---:"
	case "right":
		return "---:"
	default:
		return "---"
	}
}

func serializeTable(state markup.SerializerState, node, _ schema.Node, _ int) error {
	columns := 0
	for _, row := range node.Content {
		if len(row.Content) > columns {
			columns = len(row.Content)
		}
	}
	if columns == 0 {
		state.CloseBlock(node)
		return nil
	}

	rows := node.Content
	aligns := make([]string, columns)
	hasHeader := false
	if len(rows) > 0 && len(rows[0].Content) > 0 {
		hasHeader, _ = rows[0].Content[0].Attrs[AttrCellHeader].(bool)
	}
	for _, row := range rows {
		for i, cell := range row.Content {
			if aligns[i] == "" {
				aligns[i] = cell.GetStringAttr(AttrCellAlign, "")
			}
		}
	}

	writeRow := func(row schema.Node) error {
		state.Write("|")
		for i := 0; i < columns; i++ {
			state.Write(" ")
			if i < len(row.Content) {
				cell, changed := flattenCell(row.Content[i])
				if changed {
					state.Warn(markup.WarningDroppedFeature, nodeTableCell, "line breaks in table cells written as spaces")
				}
				err := state.WithEscapedChars("|", func() error {
					return state.RenderInline(cell)
				})
				if err != nil {
					return err
				}
			}
			state.Write(" |")
		}
		return nil
	}

	if hasHeader {
		if err := writeRow(rows[0]); err != nil {
			return err
		}
		rows = rows[1:]
	} else {
		if err := writeRow(schema.Node{Type: nodeTableRow}); err != nil {
			return err
		}
	}
	state.Write("\n")
	state.Write("|")
	for _, align := range aligns {
		state.Write(" " + delimiterCell(align) + " |")
	}
	for _, row := range rows {
		state.Write("\n")
		if err := writeRow(row); err != nil {
			return err
		}
	}
	state.CloseBlock(node)
	return nil
}
