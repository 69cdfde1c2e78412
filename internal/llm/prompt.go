package llm

// systemPrompt primes the model for literal extraction. Legal TOC pages are
// dense and formulaic, so the emphasis is on copying, not interpreting.
const systemPrompt = "You are a specialized legal document analyzer tasked with extracting ONLY the actual " +
	"Table of Contents from legal and judicial documents. Extract EXACTLY what is visible " +
	"in the images without fabrication or inference. If you see a Table of Contents with " +
	"case numbers, lawsuit details, and page numbers, extract it PRECISELY as it appears."

// instructionPrompt is the text segment sent ahead of the page images. It
// describes the TOC line format and mandates the JSON reply shape that
// DecodeResult expects.
const instructionPrompt = `Extract the Table of Contents from this PDF document. The TOC follows this specific format:

[Case Number] Juicio nº [Case ID] a instancia de [Plaintiff] contra [Defendant] .................. Página [Page Number]

Requirements:
1. Extract ONLY what is actually visible in the images
2. Maintain exact case numbers, party names, and page numbers
3. Preserve section headers like 'Juzgado de lo Social Número X de Santa Cruz de Tenerife'
4. Keep dotted leader lines (..........) in the raw_text field, connecting entries to page numbers

Respond with a single JSON object in exactly this shape:
{
  "toc_entries": [
    {
      "case_number": "case number if visible",
      "case_id": "juicio identifier if visible",
      "plaintiff": "plaintiff name if visible",
      "defendant": "defendant name if visible",
      "page_number": "page number if visible",
      "raw_text": "the complete entry line exactly as printed"
    }
  ],
  "section_headers": ["each section header exactly as printed"]
}

Every entry must include raw_text. Omit fields you cannot read rather than guessing them.
Include ONLY real content from the images. If no Table of Contents is visible, respond with
{"toc_entries": [], "section_headers": []}.`
