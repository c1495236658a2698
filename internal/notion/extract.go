package notion

import (
	"fmt"
	"strings"
)

// ExtractText flattens blocks into plain text, one paragraph per block.
// Headings, lists, quotes, and to-dos keep a light markdown marker so chunk
// boundaries retain some structure; unsupported block types are skipped.
func ExtractText(blocks []Block) string {
	var b strings.Builder

	for _, block := range blocks {
		var text string

		switch block.Type {
		case "paragraph":
			if block.Paragraph != nil {
				text = plainText(block.Paragraph.RichText)
			}
		case "heading_1":
			if block.Heading1 != nil {
				text = "# " + plainText(block.Heading1.RichText)
			}
		case "heading_2":
			if block.Heading2 != nil {
				text = "## " + plainText(block.Heading2.RichText)
			}
		case "heading_3":
			if block.Heading3 != nil {
				text = "### " + plainText(block.Heading3.RichText)
			}
		case "bulleted_list_item":
			if block.BulletedListItem != nil {
				text = "• " + plainText(block.BulletedListItem.RichText)
			}
		case "numbered_list_item":
			if block.NumberedListItem != nil {
				text = "- " + plainText(block.NumberedListItem.RichText)
			}
		case "code":
			if block.Code != nil {
				text = fmt.Sprintf("```%s\n%s\n```", block.Code.Language, plainText(block.Code.RichText))
			}
		case "quote":
			if block.Quote != nil {
				text = "> " + plainText(block.Quote.RichText)
			}
		case "callout":
			if block.Callout != nil {
				text = plainText(block.Callout.RichText)
			}
		case "to_do":
			if block.ToDo != nil {
				checkbox := "[ ]"
				if block.ToDo.Checked {
					checkbox = "[x]"
				}
				text = checkbox + " " + plainText(block.ToDo.RichText)
			}
		default:
			continue
		}

		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// ExtractPageTitle returns the page title. Notion stores it under a property
// whose name varies but whose type is always "title".
func ExtractPageTitle(page *Page) string {
	for _, prop := range page.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return plainText(prop.Title)
		}
	}
	return "Untitled (ID: " + page.ID + ")"
}

func plainText(richTexts []RichText) string {
	var parts []string
	for _, rt := range richTexts {
		parts = append(parts, rt.PlainText)
	}
	return strings.Join(parts, "")
}
