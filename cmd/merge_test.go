package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xlink/internal/merge"
	"github.com/sells-group/xlink/internal/store"
)

const bridgeCSV = `
gvkey,lpermno,linktype,linkprim,linkdt,linkenddt
001000,1,LU,P,1990-01-01,E
002000,2,LC,C,1995-01-01,2001-06-30
003000,1,NU,P,1990-01-01,E
`

const fundaCSV = `
gvkey,datadate,fyear,conm,sale,at,consol,indfmt,datafmt,popsrc,curcd,final,fic
001000,2001-12-31,2001,ACME CORP,100.5,200,C,INDL,STD,D,USD,Y,USA
001000,2001-12-31,2001,ACME CORP,1,1,C,INDL,SUMM_STD,D,USD,Y,USA
002000,2001-12-31,2001,FOO INC,50,60,C,INDL,STD,D,USD,Y,USA
`

func TestParseAsOf(t *testing.T) {
	got, err := parseAsOf("2020-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), got)

	today, err := parseAsOf("")
	require.NoError(t, err)
	assert.Equal(t, 0, today.Hour())
	assert.WithinDuration(t, time.Now().UTC(), today, 24*time.Hour)

	_, err = parseAsOf("E")
	assert.Error(t, err)
	_, err = parseAsOf("yesterday")
	assert.Error(t, err)
}

func TestRunMergeCompustat(t *testing.T) {
	files := linkExtracts()
	files["crsp.ccmxpf_linktable"] = bridgeCSV
	files["comp.funda"] = fundaCSV

	ctx := context.Background()
	c := testConfig(writeExtracts(t, files))
	st := testStore(t)
	out := outputSpec{Path: filepath.Join(t.TempDir(), "firm_years.csv"), Format: "csv", Delimiter: ','}
	asOf := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, runMergeCompustat(ctx, c, mustSource(t, c), st, out, asOf))

	header, rows := readOutput(t, out.Path)
	assert.Equal(t, merge.FirmYearColumns, header)
	assert.Equal(t, [][]string{
		{"ACME CORP", "2001", "12345678", "ACME", "1", "001000", "0", "72", "2001-12-31", "2001", "ACME CORP", "100.5", "200"},
	}, rows)

	runs, err := st.ListRuns(ctx, store.RunFilter{Command: "merge compustat"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2020-01-01", runs[0].Params["as_of"])
	require.NotNil(t, runs[0].Result)
	assert.Equal(t, 1, runs[0].Result.RowsWritten)
}

func TestRunMergeCRSP(t *testing.T) {
	files := linkExtracts()
	files["crsp.msf"] = `
permno,date,cusip
1,2001-12-31,12345678
1,2001-12-31,12345678
1,2001-11-30,12345678
2,2001-12-31,99999999
3,2001-12-31,33333333
`

	ctx := context.Background()
	c := testConfig(writeExtracts(t, files))
	out := outputSpec{Path: filepath.Join(t.TempDir(), "monthly.csv"), Format: "csv", Delimiter: ','}

	require.NoError(t, runMergeCRSP(ctx, c, mustSource(t, c), nil, out))

	header, rows := readOutput(t, out.Path)
	assert.Equal(t, merge.MonthlyColumns, header)
	require.Len(t, rows, 2)

	byPermno := make(map[string][]string)
	for _, r := range rows {
		byPermno[r[5]] = r
	}
	acme := byPermno["1"]
	require.NotNil(t, acme)
	assert.Equal(t, "ACME CORP", acme[0])
	assert.Equal(t, "2001-12-31", acme[2])
	assert.Equal(t, "12345678", acme[11])

	foo := byPermno["2"]
	require.NotNil(t, foo)
	assert.Equal(t, "FOO INC", foo[0])
	assert.Equal(t, "5", foo[10])
	assert.Equal(t, "99999999", foo[11])
}

func TestRunCoverage(t *testing.T) {
	ctx := context.Background()
	c := testConfig(writeExtracts(t, map[string]string{
		"crsp.msf": `
permno,date,cusip
1,2001-12-31,12345678
2,2001-12-31,99999999
2,1999-12-31,99999999
`,
		"crsp.msenames": `
permno,ncusip,namedt,nameendt,ticker,comnam,shrcd
1,12345678,2000-01-01,2005-12-31,ACME,ACME CORPORATION,11
2,99999999,2000-01-01,2005-12-31,FOO,FOO INC,10
`,
		"comp.security": `
gvkey,iid,cusip,tic,excntry
001000,01,123456789,ACME,USA
002000,01,999999990,FOO,CAN
`,
		"crsp.ccmxpf_linktable": `
gvkey,lpermno,linktype,linkprim,linkdt,linkenddt
001000,1,LU,P,1990-01-01,E
002000,2,LC,C,1995-01-01,E
`,
		"comp.funda": `
gvkey,datadate,sale,at
001000,2001-12-31,100,0
002000,2001-06-30,0,5
002000,1999-06-30,0,0
`,
	}))
	out := outputSpec{Path: filepath.Join(t.TempDir(), "coverage.csv"), Format: "csv", Delimiter: ','}

	require.NoError(t, runCoverage(ctx, c, mustSource(t, c), nil, out, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	header, rows := readOutput(t, out.Path)
	assert.Equal(t, merge.CoverageColumns, header)
	assert.Equal(t, [][]string{{"2001", "2", "1"}}, rows)
}
