package collector

import "github.com/shinmindoree/llmtradingtest/internal/core"

// Columns are the bar fields in display order.
var Columns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// Preview summarises a loaded series.
type Preview struct {
	Symbol   string     `json:"symbol"`
	Interval string     `json:"interval"`
	Rows     int        `json:"rows"`
	Columns  []string   `json:"columns"`
	Head     []core.Bar `json:"head"`
}

// NewPreview returns the size of s and its first n bars.
func NewPreview(s *core.Series, n int) Preview {
	return Preview{
		Symbol:   s.Symbol(),
		Interval: s.Interval(),
		Rows:     s.Len(),
		Columns:  Columns,
		Head:     s.Head(n).Bars(),
	}
}
