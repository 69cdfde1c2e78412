package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lexatlas/toc-extractor/internal/domain"
)

// tocReplySchemaJSON is the formal contract for model replies. It mirrors the
// shape spelled out in instructionPrompt; page_number admits numbers because
// models frequently return them unquoted despite the instructions.
const tocReplySchemaJSON = `{
	"type": "object",
	"required": ["toc_entries", "section_headers"],
	"properties": {
		"toc_entries": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["raw_text"],
				"properties": {
					"case_number": {"type": "string"},
					"case_id": {"type": "string"},
					"plaintiff": {"type": "string"},
					"defendant": {"type": "string"},
					"page_number": {"type": ["string", "number"]},
					"raw_text": {"type": "string"}
				}
			}
		},
		"section_headers": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

var tocReplySchema = jsonschema.MustCompileString("toc_reply.json", tocReplySchemaJSON)

// ValidateReply checks a raw model reply against the TOC reply schema. A
// validation failure is advisory: DecodeResult still salvages whatever fields
// it can, so callers should log rather than abort.
func ValidateReply(raw string) error {
	var payload any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return fmt.Errorf("parse reply: %w", err)
	}
	if err := tocReplySchema.Validate(payload); err != nil {
		return fmt.Errorf("reply does not match TOC schema: %w", err)
	}
	return nil
}

// DecodeResult turns a raw model reply into an ExtractionResult. Missing
// top-level keys become empty arrays, numeric page numbers are coerced to
// strings, and non-object entries are dropped. An unparseable reply becomes a
// failed result that preserves the raw text for inspection.
func DecodeResult(raw string) *domain.ExtractionResult {
	var payload map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return domain.FailedExtractionResult(fmt.Sprintf("failed to parse model response as JSON: %v", err), raw)
	}

	result := domain.NewExtractionResult()

	if entries, ok := payload["toc_entries"].([]any); ok {
		for _, item := range entries {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			result.TOCEntries = append(result.TOCEntries, domain.TOCEntry{
				CaseNumber: stringField(obj, "case_number"),
				CaseID:     stringField(obj, "case_id"),
				Plaintiff:  stringField(obj, "plaintiff"),
				Defendant:  stringField(obj, "defendant"),
				PageNumber: stringField(obj, "page_number"),
				RawText:    stringField(obj, "raw_text"),
			})
		}
	}

	if headers, ok := payload["section_headers"].([]any); ok {
		for _, item := range headers {
			if s, ok := item.(string); ok {
				result.SectionHeaders = append(result.SectionHeaders, s)
			}
		}
	}

	return result
}

// stringField reads a key as a string, coercing JSON numbers. Anything else
// (null, absent, nested structures) is treated as empty.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// stripCodeFence removes a markdown code fence if the model wrapped its JSON
// in one despite the json_object response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
