package core

// Row maps a column name to a nullable scalar.
type Row map[string]any

// QueryResult is the immutable outcome of one query.
type QueryResult struct {
	Columns    []string `json:"columns"`
	Rows       []Row    `json:"rows"`
	Total      int      `json:"total"`
	ExecTimeMs int64    `json:"execTimeMs"`
	SQL        string   `json:"sql"`
	Truncated  bool     `json:"truncated"`
}

// NLQueryResponse is the combined output of run_nl_query.
type NLQueryResponse struct {
	GeneratedSQL string       `json:"generatedSql"`
	Result       *QueryResult `json:"result"`
}
