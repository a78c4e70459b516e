package retriever

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boxabirds/docqa/internal/util"
	"github.com/boxabirds/docqa/pkg/common"
)

const (
	snippetMaxChars   = 500
	maxEntitySources  = 5
	unknownSourceFile = "Unknown"
)

// BuildPromptContext serializes a retrieved context into the prompt block:
// community summaries, entities, relationships, then source texts. The
// result fits within charBudget; when something has to go, the graph
// sections are cut before the source texts.
func BuildPromptContext(rc *common.RetrievedContext, charBudget int) string {
	var head strings.Builder

	if len(rc.CommunityReports) > 0 {
		head.WriteString("## Community Summaries\n")
		for _, cr := range rc.CommunityReports {
			content := cr.FullContent
			if content == "" {
				content = cr.Summary
			}
			fmt.Fprintf(&head, "### %s\n%s\n\n", cr.Title, content)
		}
	}

	if len(rc.Entities) > 0 {
		head.WriteString("## Entities\n")
		for _, e := range rc.Entities {
			if e.Description != "" {
				fmt.Fprintf(&head, "- **%s** (%s): %s\n", e.Name, e.Type, e.Description)
			} else {
				fmt.Fprintf(&head, "- **%s** (%s)\n", e.Name, e.Type)
			}
		}
	}

	if len(rc.Relationships) > 0 {
		head.WriteString("\n## Relationships\n")
		for _, r := range rc.Relationships {
			fmt.Fprintf(&head, "- %s -- %s --> %s (weight %.1f)\n", r.Source, r.Description, r.Target, r.Weight)
		}
	}

	var texts strings.Builder
	if len(rc.TextUnits) > 0 {
		texts.WriteString("\n## Source Texts\n")
		for i, tu := range rc.TextUnits {
			fmt.Fprintf(&texts, "[%d] %s%s\n\n", i+1, sourceHeader(tu.TextUnit), tu.Text)
		}
	}

	headStr := head.String()
	textStr := texts.String()

	headLen := len([]rune(headStr))
	textLen := len([]rune(textStr))
	if headLen+textLen > charBudget {
		// Source texts are the primary information source; cut the graph
		// sections first and the texts only if they alone overflow.
		headStr = util.TruncateRunes(headStr, charBudget-textLen)
		if textLen > charBudget {
			textStr = util.TruncateRunes(textStr, charBudget)
		}
	}

	return headStr + textStr
}

func sourceHeader(tu common.TextUnit) string {
	if tu.SourceFile == "" && tu.PageStart == nil {
		return ""
	}

	file := tu.SourceFile
	if file == "" {
		file = unknownSourceFile
	}
	if tu.PageStart == nil {
		return fmt.Sprintf("[%s]\n", file)
	}

	end := *tu.PageStart
	if tu.PageEnd != nil {
		end = *tu.PageEnd
	}
	return fmt.Sprintf("[%s, pages %d..%d]\n", file, *tu.PageStart, end)
}

// BuildSources extracts the citation list for the info event: one entry
// per selected text unit plus up to five entity-derived entries the
// frontend renders alongside them, all sorted together by relevance.
func BuildSources(rc *common.RetrievedContext) []common.Source {
	sources := make([]common.Source, 0, len(rc.TextUnits)+maxEntitySources)

	for _, tu := range rc.TextUnits {
		var fileID *string
		if len(tu.DocumentIDs) > 0 {
			id := tu.DocumentIDs[0]
			fileID = &id
		}

		fileName := tu.SourceFile
		if fileName == "" {
			fileName = unknownSourceFile
		}

		sources = append(sources, common.Source{
			FileID:         fileID,
			FileName:       fileName,
			PageNumber:     tu.PageStart,
			PageEnd:        tu.PageEnd,
			TextSnippet:    util.TruncateRunes(tu.Text, snippetMaxChars),
			RelevanceScore: clampUnit(tu.Similarity),
		})
	}

	for i, e := range rc.Entities {
		if i >= maxEntitySources {
			break
		}
		sources = append(sources, common.Source{
			FileName:       "Entity: " + e.Name,
			TextSnippet:    util.TruncateRunes(e.Description, snippetMaxChars),
			RelevanceScore: clampUnit(e.Similarity),
		})
	}

	// Relevance is non-increasing across the whole list, interleaving
	// entity entries with the chunks they outrank.
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].RelevanceScore > sources[j].RelevanceScore
	})

	return sources
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
