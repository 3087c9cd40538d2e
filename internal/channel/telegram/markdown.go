package telegram

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// convertMarkdownEntities renders markdown to plain text plus Telegram
// message entities. Sending entities instead of parse_mode markup
// avoids the whole class of "can't parse entities" API errors on
// model-generated text.
func convertMarkdownEntities(md string) (string, []models.MessageEntity) {
	if md == "" {
		return "", nil
	}

	exts := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock |
		parser.Strikethrough | parser.FencedCode | parser.Autolink | parser.Tables
	doc := parser.NewWithExtensions(exts).Parse([]byte(md))

	b := &entityBuilder{}
	b.renderNode(doc)
	b.sortEntities()

	return b.text.String(), b.entities
}

// entityBuilder accumulates the rendered plain text and the entity
// list. Telegram offsets count UTF-16 code units, so the running
// offset is tracked alongside the bytes.
type entityBuilder struct {
	text     strings.Builder
	offset16 int
	entities []models.MessageEntity
}

func (b *entityBuilder) writeString(v string) {
	if v == "" {
		return
	}
	b.text.WriteString(v)
	b.offset16 += len(utf16.Encode([]rune(v)))
}

func (b *entityBuilder) writeByte(v byte) {
	b.writeString(string(v))
}

// mark closes an entity spanning from start16 to the current offset.
// Zero-length spans are dropped.
func (b *entityBuilder) mark(entityType models.MessageEntityType, start16 int, url, language string) {
	length := b.offset16 - start16
	if length <= 0 {
		return
	}

	entity := models.MessageEntity{
		Type:   entityType,
		Offset: start16,
		Length: length,
	}
	entity.URL = url
	entity.Language = language
	b.entities = append(b.entities, entity)
}

// sortEntities orders entities by offset, outermost first on ties, the
// order the Bot API expects for nested formatting.
func (b *entityBuilder) sortEntities() {
	if len(b.entities) <= 1 {
		return
	}
	sort.SliceStable(b.entities, func(i, j int) bool {
		if b.entities[i].Offset != b.entities[j].Offset {
			return b.entities[i].Offset < b.entities[j].Offset
		}
		return b.entities[i].Length > b.entities[j].Length
	})
}

func (b *entityBuilder) renderChildren(node ast.Node) {
	for _, child := range node.GetChildren() {
		b.renderNode(child)
	}
}

func (b *entityBuilder) renderNode(node ast.Node) {
	switch n := node.(type) {
	case *ast.Document:
		b.renderChildren(node)
	case *ast.Paragraph:
		b.renderChildren(node)
		if ast.GetNextNode(node) != nil {
			if _, ok := node.GetParent().(*ast.ListItem); ok {
				b.writeByte('\n')
			} else {
				b.writeString("\n\n")
			}
		}
	case *ast.Heading:
		start := b.offset16
		b.renderChildren(node)
		b.mark(models.MessageEntityTypeBold, start, "", "")
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.BlockQuote:
		start := b.offset16
		b.renderChildren(node)
		b.mark(models.MessageEntityTypeBlockquote, start, "", "")
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.List:
		b.renderList(n)
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.ListItem:
		b.renderListItem(n)
	case *ast.Strong:
		start := b.offset16
		b.renderChildren(node)
		b.mark(models.MessageEntityTypeBold, start, "", "")
	case *ast.Emph:
		start := b.offset16
		b.renderChildren(node)
		b.mark(models.MessageEntityTypeItalic, start, "", "")
	case *ast.Del:
		start := b.offset16
		b.renderChildren(node)
		b.mark(models.MessageEntityTypeStrikethrough, start, "", "")
	case *ast.Code:
		start := b.offset16
		b.writeString(string(n.Literal))
		b.mark(models.MessageEntityTypeCode, start, "", "")
	case *ast.CodeBlock:
		start := b.offset16
		b.writeString(strings.TrimRight(string(n.Literal), "\n"))
		b.mark(models.MessageEntityTypePre, start, "", codeLang(string(n.Info)))
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.Link:
		start := b.offset16
		b.renderChildren(node)
		if b.offset16 > start {
			b.mark(models.MessageEntityTypeTextLink, start, string(n.Destination), "")
		} else {
			// Bare link with no label text: show the destination itself.
			b.writeString(string(n.Destination))
		}
	case *ast.Text:
		b.writeString(string(n.Literal))
	case *ast.Softbreak, *ast.Hardbreak:
		b.writeByte('\n')
	case *ast.HorizontalRule:
		b.writeString(strings.Repeat("-", 10))
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.HTMLBlock:
		b.writeString(string(n.Literal))
		if ast.GetNextNode(node) != nil {
			b.writeString("\n\n")
		}
	case *ast.HTMLSpan:
		b.writeString(string(n.Literal))
	default:
		if len(node.GetChildren()) > 0 {
			b.renderChildren(node)
			return
		}
		if leaf := node.AsLeaf(); leaf != nil && len(leaf.Literal) > 0 {
			b.writeString(string(leaf.Literal))
		}
	}
}

func (b *entityBuilder) renderList(list *ast.List) {
	ordered := list.ListFlags&ast.ListTypeOrdered != 0
	index := list.Start
	if index <= 0 {
		index = 1
	}

	items := list.GetChildren()
	for i, one := range items {
		item, ok := one.(*ast.ListItem)
		if !ok {
			continue
		}

		if ordered {
			b.writeString(strconv.Itoa(index))
			b.writeString(". ")
			index++
		} else {
			b.writeString("- ")
		}

		b.renderListItem(item)
		if i < len(items)-1 {
			b.writeByte('\n')
		}
	}
}

func (b *entityBuilder) renderListItem(item *ast.ListItem) {
	children := item.GetChildren()
	for i, child := range children {
		if paragraph, ok := child.(*ast.Paragraph); ok {
			b.renderChildren(paragraph)
		} else {
			b.renderNode(child)
		}
		if i < len(children)-1 {
			b.writeByte('\n')
		}
	}
}

func codeLang(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
