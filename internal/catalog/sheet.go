package catalog

import "strings"

// Spreadsheet layout of the "Catalog" sheet: fixed columns A..H, then up to
// seven color columns I..O.
const (
	colID = iota
	colVehicleName
	colVariant
	colExShowroom
	colTax
	colInsurance
	colExtendedWarranty
	colOnRoad
	colFirstColor
)

const colLastColor = colFirstColor + 6

// FromSheetRows maps spreadsheet rows to records. The first row is a header
// and is skipped. Short rows are padded; rows with no cells at all are dropped.
func FromSheetRows(rows [][]string) []Record {
	if len(rows) <= 1 {
		return nil
	}
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		cell := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
		var colors []string
		for i := colFirstColor; i <= colLastColor && i < len(row); i++ {
			if c := strings.TrimSpace(row[i]); c != "" {
				colors = append(colors, c)
			}
		}
		records = append(records, Record{
			ID:               cell(colID),
			VehicleName:      cell(colVehicleName),
			Variant:          cell(colVariant),
			ExShowroomPrice:  ParseAmount(cell(colExShowroom)),
			Tax:              ParseAmount(cell(colTax)),
			Insurance:        ParseAmount(cell(colInsurance)),
			ExtendedWarranty: ParseAmount(cell(colExtendedWarranty)),
			OnRoadPrice:      ParseAmount(cell(colOnRoad)),
			Colors:           colors,
		})
	}
	return records
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
