package models

// Citation links part of a generated answer to a source file or URL.
// Citations are derived per response and never stored.
type Citation struct {
	Quote       string `json:"quote,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
	FileRef     string `json:"file_ref,omitempty"`
}

// Key is the deduplication key: fileRef|sourceLabel|quote.
func (c Citation) Key() string {
	return c.FileRef + "|" + c.SourceLabel + "|" + c.Quote
}
