package source

// Extract table names.
const (
	TableHistory      = "kld.history"
	TableStockNames   = "crsp.stocknames"
	TableBridge       = "crsp.ccmxpf_linktable"
	TableFundamentals = "comp.funda"
	TableMonthly      = "crsp.msf"
	TableMSENames     = "crsp.msenames"
	TableSecurity     = "comp.security"
)

// HistoryQuery selects the ratings history.
func HistoryQuery() Query {
	return Query{
		Table:   TableHistory,
		Columns: []string{"ticker", "cusip", "companyname", "year"},
	}
}

// StockNamesQuery selects the security name spells.
func StockNamesQuery() Query {
	return Query{
		Table:   TableStockNames,
		Columns: []string{"permno", "ncusip", "ticker", "comnam", "namedt", "nameenddt"},
	}
}

// BridgeQuery selects usable PERMNO→GVKEY link spells.
func BridgeQuery() Query {
	return Query{
		Table:   TableBridge,
		Columns: []string{"gvkey", "lpermno", "linktype", "linkprim", "linkdt", "linkenddt"},
		Where: []Condition{
			In("linktype", "LU", "LC"),
			In("linkprim", "P", "C"),
		},
	}
}

// FundamentalsQuery selects annual fundamentals under the standard screens.
func FundamentalsQuery() Query {
	return Query{
		Table:   TableFundamentals,
		Columns: []string{"gvkey", "datadate", "fyear", "conm", "sale", "at"},
		Where: []Condition{
			Or(Gt("sale", 0), Gt("at", 0)),
			Eq("consol", "C"),
			Eq("indfmt", "INDL"),
			Eq("datafmt", "STD"),
			Eq("popsrc", "D"),
			Eq("curcd", "USD"),
			Eq("final", "Y"),
			Eq("fic", "USA"),
			Gte("datadate", "1990-01-01"),
		},
	}
}

// MonthlyQuery selects the monthly stock file keys.
func MonthlyQuery() Query {
	return Query{
		Table:    TableMonthly,
		Columns:  []string{"permno", "date", "cusip"},
		Distinct: true,
	}
}

// MSENamesQuery selects common-share name spells with a CUSIP.
func MSENamesQuery() Query {
	return Query{
		Table:    TableMSENames,
		Columns:  []string{"permno", "ncusip", "namedt", "nameendt", "ticker", "comnam"},
		Where:    []Condition{NotEmpty("ncusip"), In("shrcd", "10", "11")},
		Distinct: true,
	}
}

// SecurityQuery selects US securities with a CUSIP.
func SecurityQuery() Query {
	return Query{
		Table:    TableSecurity,
		Columns:  []string{"gvkey", "iid", "cusip", "tic"},
		Where:    []Condition{NotEmpty("cusip"), Eq("excntry", "USA")},
		Distinct: true,
	}
}

// CoverageFundamentalsQuery selects fundamentals with sales or assets,
// without the format screens.
func CoverageFundamentalsQuery() Query {
	return Query{
		Name:     "coverage.funda",
		Table:    TableFundamentals,
		Columns:  []string{"gvkey", "datadate", "sale", "at"},
		Where:    []Condition{Or(Gt("sale", 0), Gt("at", 0))},
		Distinct: true,
	}
}
