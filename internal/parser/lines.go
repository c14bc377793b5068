package parser

import "sort"

// lineTable maps byte offsets to 1-based line numbers. Each of "\r\n", "\r"
// and "\n" counts as one break.
type lineTable struct {
	starts []int
}

func newLineTable(text string) lineTable {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return lineTable{starts: starts}
}

// line returns the line containing offset.
func (t lineTable) line(offset int) int {
	return sort.Search(len(t.starts), func(i int) bool {
		return t.starts[i] > offset
	})
}
