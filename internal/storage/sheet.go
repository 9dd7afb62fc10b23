package storage

import (
	"github.com/xuri/excelize/v2"

	"github.com/issuelens/issuelens/internal/oputil"
)

// ReadSheet reads the first worksheet of an xlsx file and remaps its columns
// through fieldMap (source header -> destination key). Headers absent from
// fieldMap are ignored. Rows whose mapped fields are all empty are dropped.
func ReadSheet(path string, fieldMap map[string]string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, oputil.Wrap(err, oputil.KindInputMissing, "open spreadsheet %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, oputil.New(oputil.KindInputMalformed, "spreadsheet %s has no worksheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, oputil.Wrap(err, oputil.KindInputMalformed, "read worksheet %s", sheets[0])
	}
	if len(rows) < 2 {
		return nil, nil
	}

	// Column index -> destination key, from the header row.
	dst := make(map[int]string)
	for i, header := range rows[0] {
		if key, found := fieldMap[header]; found {
			dst[i] = key
		}
	}

	var records []map[string]string
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(dst))
		empty := true
		for i, key := range dst {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec[key] = val
			if val != "" {
				empty = false
			}
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records, nil
}
