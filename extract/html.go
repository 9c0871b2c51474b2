package extract

// extractHTML converts HTML to Markdown so headings survive as "#" lines.
func (e *Extractor) extractHTML(data []byte) (string, error) {
	return e.mdConverter.ConvertString(decodeText(data))
}
