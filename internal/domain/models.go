package domain

// RenderScale is the fixed linear upscale applied on both axes when
// rendering pages. Legal TOC pages are dense; 2x keeps small dotted
// leaders and case numbers legible for the model.
const RenderScale = 2.0

// PageImage is a single rendered PDF page. Index is the 0-based page
// number in the source document; ordering is stable regardless of how
// rendering was scheduled.
type PageImage struct {
	Index int
	PNG   []byte
	Scale float64
}

// TOCEntry is one parsed line item of a table of contents. Every field
// except RawText is best-effort: the model may fail to read any of
// them. RawText always carries the line exactly as it appeared in the
// source, even when empty.
type TOCEntry struct {
	CaseNumber string `json:"case_number,omitempty"`
	CaseID     string `json:"case_id,omitempty"`
	Plaintiff  string `json:"plaintiff,omitempty"`
	Defendant  string `json:"defendant,omitempty"`
	PageNumber string `json:"page_number,omitempty"`
	RawText    string `json:"raw_text"`
}

// ExtractionResult is the model's structured answer for one document.
// Immutable once returned. When the structured form could not be
// produced, Error/ErrorMessage describe the failure and RawContent
// preserves whatever text the model returned.
type ExtractionResult struct {
	TOCEntries     []TOCEntry `json:"toc_entries"`
	SectionHeaders []string   `json:"section_headers"`
	Error          bool       `json:"error,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RawContent     string     `json:"raw_content,omitempty"`
}

// NewExtractionResult returns an empty, well-shaped result. Entry and
// header slices are non-nil so the JSON form always carries both keys.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		TOCEntries:     []TOCEntry{},
		SectionHeaders: []string{},
	}
}

// FailedExtractionResult returns an empty result flagged with the given
// error message. rawContent may carry the unparsed model output.
func FailedExtractionResult(message, rawContent string) *ExtractionResult {
	res := NewExtractionResult()
	res.Error = true
	res.ErrorMessage = message
	res.RawContent = rawContent
	return res
}
