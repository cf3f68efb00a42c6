package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SalesCSV is a small Superstore-shaped dataset. Dates are day-first, as in
// the original export.
//
// It has 12 rows, 7 customers each with a distinct first-order month, 3
// categories and 7 distinct order months.
const SalesCSV = `Row ID,Order Date,Customer ID,Customer Name,Category,Sales
1,08/11/2016,CG-12520,Claire Gute,Furniture,261.96
2,08/11/2016,CG-12520,Claire Gute,Furniture,731.94
3,12/06/2016,DV-13045,Darrin Van Huff,Office Supplies,14.62
4,11/10/2015,SO-20335,Sean O'Donnell,Furniture,957.5775
5,11/10/2015,SO-20335,Sean O'Donnell,Office Supplies,22.368
6,09/06/2014,BH-11710,Brosina Hoffman,Furniture,48.86
7,09/06/2014,BH-11710,Brosina Hoffman,Office Supplies,7.28
8,09/06/2014,BH-11710,Brosina Hoffman,Technology,907.152
9,15/04/2017,AA-10480,Andrew Allen,Office Supplies,15.552
10,05/12/2016,IM-15070,Irene Maddox,Technology,407.976
11,22/11/2015,HP-14815,Harold Pawlan,Office Supplies,68.81
12,22/11/2015,HP-14815,Harold Pawlan,Office Supplies,2.544
`

// WriteFile writes content to name inside a fresh temp directory and
// returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteSalesCSV writes SalesCSV as sales.csv and returns its path.
func WriteSalesCSV(t *testing.T) string {
	t.Helper()
	return WriteFile(t, "sales.csv", SalesCSV)
}
