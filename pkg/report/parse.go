// Package report renders finished SOC reports into documents and graphs.
package report

import "strings"

// BlockKind classifies a parsed report block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
)

// Block is one element of a report in the heading/bullet markdown subset.
type Block struct {
	Kind BlockKind
	// Level is the number of leading '#' for headings.
	Level int
	Text  string
	// Items holds the bullet texts of a list block.
	Items []string
}

// Parse splits report text into headings, bullet lists and paragraphs.
// Blank lines are dropped and consecutive bullets form one list.
func Parse(text string) []Block {
	var blocks []Block
	var items []string

	flush := func() {
		if len(items) > 0 {
			blocks = append(blocks, Block{Kind: BlockList, Items: items})
			items = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			flush()
			trimmed := strings.TrimLeft(line, "#")
			blocks = append(blocks, Block{
				Kind:  BlockHeading,
				Level: len(line) - len(trimmed),
				Text:  strings.TrimSpace(trimmed),
			})
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			items = append(items, strings.TrimSpace(line[2:]))
		default:
			flush()
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: line})
		}
	}
	flush()
	return blocks
}
