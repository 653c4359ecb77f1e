package excel

// rawTable is a parsed spreadsheet before panel validation: a header row and
// string records in file order.
type rawTable struct {
	Headers []string
	Records [][]string
}

// cell returns the value at (row, header index), empty when the record is
// ragged and shorter than the header row.
func (t *rawTable) cell(row, col int) string {
	if col < len(t.Records[row]) {
		return t.Records[row][col]
	}
	return ""
}

// columnIndex returns the index of a header, matched case-insensitively after
// trimming, or -1.
func (t *rawTable) columnIndex(name string) int {
	for i, h := range t.Headers {
		if normalizeHeader(h) == normalizeHeader(name) {
			return i
		}
	}
	return -1
}
