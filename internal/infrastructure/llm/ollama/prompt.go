package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const (
	literalRule  = "**LITERAL EXTRACTION ONLY**: Extract the text exactly as it appears in the image. **DO NOT TRANSLATE**. **DO NOT SUMMARIZE**. **DO NOT ADD COMMENTS**."
	languageRule = "**ORIGINAL LANGUAGE**: The text must remain in the original language of the document."
	jsonRule     = "**JSON ONLY**: Output strictly valid JSON. Do not include markdown formatting (like ```json) or conversational text."
)

const referencesRule = `**REMOVE IN-TEXT REFERENCES**: When extracting MAIN_TEXT blocks, omit every in-text academic citation, such as:
    - (Author, Year) and (Author, Year: page) or (Author, Year: p. XX)
    - (SURNAME, 1908: p. 104) and (Surname, 1908:104)
    - (Author et al., Year) and (Author & Author, Year)
    - any similar APA, MLA or Chicago citation in parentheses
    Skip them entirely so the remaining text still reads naturally.`

// layoutSchema constrains the model output to the block list.
var layoutSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"blocks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":  map[string]any{"type": "string"},
					"label": map[string]any{"type": "string", "enum": labelNames()},
					"box_2d": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "number"},
						"description": "Bounding box [ymin, xmin, ymax, xmax] normalized 0-1000",
					},
				},
				"required": []string{"text", "label"},
			},
		},
	},
	"required": []string{"blocks"},
}

func labelNames() []string {
	names := make([]string, 0, len(domain.AllLabels))
	for _, label := range domain.AllLabels {
		names = append(names, string(label))
	}
	return names
}

// buildLayoutPrompt picks the instruction text for one page. A manual
// custom prompt replaces everything.
func buildLayoutPrompt(cfg domain.ProcessingConfig) string {
	if cfg.Mode == domain.ModeManual && strings.TrimSpace(cfg.CustomPrompt) != "" {
		return cfg.CustomPrompt
	}

	extraction, language := literalRule, languageRule
	if cfg.Mode == domain.ModeTranslation && strings.TrimSpace(cfg.TargetLanguage) != "" {
		target := strings.TrimSpace(cfg.TargetLanguage)
		extraction = fmt.Sprintf("**TRANSLATION**: Extract the text and TRANSLATE it into %s. **DO NOT SUMMARIZE**. **DO NOT ADD COMMENTS**.", target)
		language = fmt.Sprintf("**TARGET LANGUAGE**: The text must be in %s.", target)
	}

	rules := []string{extraction, language, jsonRule}
	if cfg.RemoveReferences {
		rules = append(rules, referencesRule)
	}

	var b strings.Builder
	b.WriteString("You are a document layout analysis model. Perform OCR and layout segmentation on the attached page image.\n\n")
	b.WriteString("**CRITICAL INSTRUCTIONS:**\n")
	for i, rule := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}

	mainText := "The primary body content of the document."
	if cfg.RemoveReferences {
		mainText += " Remove all in-text citations from this content."
	}
	fmt.Fprintf(&b, `
**Task Steps:**
1. Read all text in the image.
2. Group continuous text into paragraphs. Do not split one paragraph into several blocks unless the page breaks it.
3. Label every block with one of:
   - TITLE: titles, subtitles and section headers.
   - MAIN_TEXT: %s
   - FOOTNOTE: notes at the bottom of the page, often starting with small numbers or symbols, or bibliographic references.
   - HEADER: repeated text at the very top, such as page numbers or chapter titles.
   - FOOTER: repeated text at the very bottom, such as page numbers or book titles.
   - CAPTION: text describing images or tables.
4. If no clear title exists, use MAIN_TEXT. Keep HEADER and FOOTER strictly apart from MAIN_TEXT.

**Output Format:**
{"blocks": [{"text": "...", "label": "MAIN_TEXT", "box_2d": [ymin, xmin, ymax, xmax]}]}
The box_2d values should be normalized to 0-1000, or to the 0-1 range.
`, mainText)
	return b.String()
}
