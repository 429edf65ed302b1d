package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/source"
	"github.com/sells-group/xlink/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// writeExtracts writes one CSV per table into a temp dir.
func writeExtracts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for table, body := range files {
		path := filepath.Join(dir, table+".csv")
		require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(body, "\n")), 0o644))
	}
	return dir
}

func testConfig(dir string) *config.Config {
	c := &config.Config{}
	c.Source.Driver = "csv"
	c.Source.Dir = dir
	c.Source.TimeoutSecs = 10
	c.Link.NamePercentile = 0.10
	c.Link.SecondaryPool = "stage"
	c.Link.AugustCutoffYear = 2000
	c.Output.Format = "csv"
	c.Output.Delimiter = ","
	c.Store.Driver = "none"
	c.Server.Port = 8080
	c.Log.Format = "json"
	c.Monitoring.LookbackWindowHours = 24
	return c
}

func mustSource(t *testing.T, c *config.Config) source.Source {
	t.Helper()
	src, closeSrc, err := initSource(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(closeSrc)
	return src
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	c := testConfig("")
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "xlink.db")
	st, err := initStore(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

const historyCSV = `
ticker,cusip,companyname,year
ACME,12345678,Acme Corp,2001
foo,NA,Foo Inc,2001
NA,#N/A,Lone Co,2001
`

const stockNamesCSV = `
permno,ncusip,ticker,comnam,namedt,nameenddt
1,12345678,ACME,ACME CORPORATION,2000-06-01,2002-01-01
2,99999999,FOO,FOO INCORPORATED,2000-01-01,2003-01-01
`

func linkExtracts() map[string]string {
	return map[string]string{
		"kld.history":     historyCSV,
		"crsp.stocknames": stockNamesCSV,
	}
}
