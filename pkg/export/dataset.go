package export

// Dataset defines tabular export content. Rows are positional and follow
// Headers; short rows are padded with empty cells when rendered.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the value at column i of row, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
