package compressor

import (
	"encoding/binary"
	"fmt"
	"sort"
)

type OriginalTable struct {
	entries  []int
	rowCount int
	colCount int
}

func NewOriginalTable(entries []int, colCount int) (*OriginalTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("enries is empty")
	}
	if colCount <= 0 {
		return nil, fmt.Errorf("colCount must be >=1")
	}
	if len(entries)%colCount != 0 {
		return nil, fmt.Errorf("entries length or column count are incorrect; entries length: %v, column count: %v", len(entries), colCount)
	}

	return &OriginalTable{
		entries:  entries,
		rowCount: len(entries) / colCount,
		colCount: colCount,
	}, nil
}

type Compressor interface {
	Compress(orig *OriginalTable) error
	Lookup(row, col int) (int, error)
	OriginalTableSize() (int, int)

	// Validate checks that every lookup stays within the compressed arrays. Tables read from outside
	// the process must pass it before Lookup is used.
	Validate() error
}

var (
	_ Compressor = &UniqueEntriesTable{}
	_ Compressor = &RowDisplacementTable{}
)

// Decompress restores the dense row-major table a compressor was built from.
func Decompress(c Compressor) ([]int, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rowCount, colCount := c.OriginalTableSize()
	entries := make([]int, rowCount*colCount)
	for row := 0; row < rowCount; row++ {
		for col := 0; col < colCount; col++ {
			v, err := c.Lookup(row, col)
			if err != nil {
				return nil, err
			}
			entries[row*colCount+col] = v
		}
	}
	return entries, nil
}

type UniqueEntriesTable struct {
	UniqueEntries    []int `json:"unique_entries"`
	RowNums          []int `json:"row_nums"`
	OriginalRowCount int   `json:"original_row_count"`
	OriginalColCount int   `json:"original_col_count"`
}

func NewUniqueEntriesTable() *UniqueEntriesTable {
	return &UniqueEntriesTable{}
}

func (tab *UniqueEntriesTable) Lookup(row, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return 0, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	return tab.UniqueEntries[tab.RowNums[row]*tab.OriginalColCount+col], nil
}

func (tab *UniqueEntriesTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *UniqueEntriesTable) Validate() error {
	if tab.OriginalRowCount < 0 || tab.OriginalColCount <= 0 {
		return fmt.Errorf("invalid table size: %vx%v", tab.OriginalRowCount, tab.OriginalColCount)
	}
	if len(tab.RowNums) != tab.OriginalRowCount {
		return fmt.Errorf("row number count mismatch: expected %v but got %v", tab.OriginalRowCount, len(tab.RowNums))
	}
	if len(tab.UniqueEntries)%tab.OriginalColCount != 0 {
		return fmt.Errorf("unique entries are not a multiple of the column count: %v", len(tab.UniqueEntries))
	}
	uniqueRowCount := len(tab.UniqueEntries) / tab.OriginalColCount
	for row, num := range tab.RowNums {
		if num < 0 || num >= uniqueRowCount {
			return fmt.Errorf("row %v refers to a missing unique row: %v", row, num)
		}
	}
	return nil
}

func (tab *UniqueEntriesTable) Compress(orig *OriginalTable) error {
	var uniqueEntries []int
	rowNums := make([]int, orig.rowCount)
	hash2RowNum := map[string]int{}
	nextRowNum := 0
	for row := 0; row < orig.rowCount; row++ {
		var rowHash string
		{
			buf := make([]byte, 0, orig.colCount*binary.MaxVarintLen64)
			for col := 0; col < orig.colCount; col++ {
				buf = binary.AppendVarint(buf, int64(orig.entries[row*orig.colCount+col]))
			}
			rowHash = string(buf)
		}
		rowNum, ok := hash2RowNum[rowHash]
		if !ok {
			rowNum = nextRowNum
			nextRowNum++
			hash2RowNum[rowHash] = rowNum
			start := row * orig.colCount
			uniqueEntries = append(uniqueEntries, orig.entries[start:start+orig.colCount]...)
		}
		rowNums[row] = rowNum
	}

	tab.UniqueEntries = uniqueEntries
	tab.RowNums = rowNums
	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount

	return nil
}

const ForbiddenValue = -1

type RowDisplacementTable struct {
	OriginalRowCount int   `json:"original_row_count"`
	OriginalColCount int   `json:"original_col_count"`
	EmptyValue       int   `json:"empty_value"`
	Entries          []int `json:"entries"`
	Bounds           []int `json:"bounds"`
	RowDisplacement  []int `json:"row_displacement"`
}

func NewRowDisplacementTable(emptyValue int) *RowDisplacementTable {
	return &RowDisplacementTable{
		EmptyValue: emptyValue,
	}
}

func (tab *RowDisplacementTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return tab.EmptyValue, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	d := tab.RowDisplacement[row]
	if d+col >= len(tab.Bounds) || tab.Bounds[d+col] != row {
		return tab.EmptyValue, nil
	}
	return tab.Entries[d+col], nil
}

func (tab *RowDisplacementTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *RowDisplacementTable) Validate() error {
	if tab.OriginalRowCount < 0 || tab.OriginalColCount <= 0 {
		return fmt.Errorf("invalid table size: %vx%v", tab.OriginalRowCount, tab.OriginalColCount)
	}
	if len(tab.RowDisplacement) != tab.OriginalRowCount {
		return fmt.Errorf("row displacement count mismatch: expected %v but got %v", tab.OriginalRowCount, len(tab.RowDisplacement))
	}
	if len(tab.Entries) != len(tab.Bounds) {
		return fmt.Errorf("entries and bounds have different lengths: %v, %v", len(tab.Entries), len(tab.Bounds))
	}
	for row, d := range tab.RowDisplacement {
		if d < 0 || d > len(tab.Entries) {
			return fmt.Errorf("row %v has an invalid displacement: %v", row, d)
		}
	}
	return nil
}

type rowInfo struct {
	rowNum        int
	nonEmptyCount int
	nonEmptyCol   []int
}

func (tab *RowDisplacementTable) Compress(orig *OriginalTable) error {
	rowInfo := make([]rowInfo, orig.rowCount)
	{
		row := 0
		col := 0
		rowInfo[0].rowNum = 0
		for _, v := range orig.entries {
			if col == orig.colCount {
				row++
				col = 0
				rowInfo[row].rowNum = row
			}
			if v != tab.EmptyValue {
				rowInfo[row].nonEmptyCount++
				rowInfo[row].nonEmptyCol = append(rowInfo[row].nonEmptyCol, col)
			}
			col++
		}

		sort.SliceStable(rowInfo, func(i int, j int) bool {
			return rowInfo[i].nonEmptyCount > rowInfo[j].nonEmptyCount
		})
	}

	// The worst case places every row side by side.
	capacity := len(orig.entries) + orig.colCount
	entries := make([]int, capacity)
	bounds := make([]int, capacity)
	resultBottom := orig.colCount
	rowDisplacement := make([]int, orig.rowCount)
	{
		for i := 0; i < capacity; i++ {
			entries[i] = tab.EmptyValue
			bounds[i] = ForbiddenValue
		}

		nextRowDisplacement := 0
		for _, rInfo := range rowInfo {
			if rInfo.nonEmptyCount <= 0 {
				continue
			}

			for {
				isOverlapped := false
				for _, col := range rInfo.nonEmptyCol {
					if bounds[nextRowDisplacement+col] == ForbiddenValue {
						continue
					}
					nextRowDisplacement++
					isOverlapped = true
					break
				}
				if isOverlapped {
					continue
				}

				rowDisplacement[rInfo.rowNum] = nextRowDisplacement
				for _, col := range rInfo.nonEmptyCol {
					entries[nextRowDisplacement+col] = orig.entries[(rInfo.rowNum*orig.colCount)+col]
					bounds[nextRowDisplacement+col] = rInfo.rowNum
				}
				if bottom := nextRowDisplacement + orig.colCount; bottom > resultBottom {
					resultBottom = bottom
				}
				nextRowDisplacement++
				break
			}
		}
	}

	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount
	tab.Entries = entries[:resultBottom]
	tab.Bounds = bounds[:resultBottom]
	tab.RowDisplacement = rowDisplacement

	return nil
}
