package responses

import (
	"encoding/json"
	"fmt"
	"strings"
)

// responseBody is the non-streaming response document. Output is the shape
// of the current Responses API and is only consulted when Content is empty.
type responseBody struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
	Output  []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text *struct {
		Value *string `json:"value"`
	} `json:"text"`
}

// ParsedBody is the text and id extracted from a non-streaming response.
type ParsedBody struct {
	ID   string
	Text string
}

// ParseBody extracts the answer from a non-streaming response document.
// Text blocks are joined with newlines. It wraps ErrBodyParse when raw is not
// a JSON object or a text block has no text.value.
func ParseBody(raw []byte) (*ParsedBody, error) {
	var doc *responseBody
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyParse, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", ErrBodyParse)
	}

	var texts []string
	for i, block := range doc.Content {
		if block.Type != ContentTypeText {
			continue
		}
		if block.Text == nil || block.Text.Value == nil {
			return nil, fmt.Errorf("%w: content[%d] has no text.value", ErrBodyParse, i)
		}
		texts = append(texts, *block.Text.Value)
	}
	if len(doc.Content) == 0 {
		for _, out := range doc.Output {
			for _, block := range out.Content {
				if block.Type == "output_text" {
					texts = append(texts, block.Text)
				}
			}
		}
	}

	return &ParsedBody{ID: doc.ID, Text: strings.Join(texts, fragmentSeparator)}, nil
}
