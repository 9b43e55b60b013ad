package types

import (
	"strconv"
	"time"
)

// Instrument identifies one tradable symbol at a provider.
// Token is the provider's opaque numeric identifier; brokerages that
// address symbols directly leave it zero.
type Instrument struct {
	Token    int64  `json:"token"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Name     string `json:"name"`
}

// Bar is a single historical daily OHLCV price bar.
type Bar struct {
	Symbol string    `json:"symbol" csv:"symbol"`
	Date   time.Time `json:"date" csv:"date"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`
}

// Row is one output record: either a bar or a per-symbol fetch error.
// Failed symbols stay in the output with the failure reason in the
// error column instead of aborting the rest of the job.
type Row struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date,omitzero"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Err    string    `json:"error,omitempty"`
}

// BarRow converts a fetched bar into an output row.
func BarRow(b Bar) Row {
	return Row{
		Symbol: b.Symbol,
		Date:   b.Date,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// ErrorRow builds a row carrying a stringified per-symbol failure.
func ErrorRow(symbol string, err error) Row {
	return Row{Symbol: symbol, Err: err.Error()}
}

// IsError reports whether the row is an error row rather than a bar.
func (r Row) IsError() bool {
	return r.Err != ""
}

// RowHeader is the CSV header of the output file.
func RowHeader() []string {
	return []string{"symbol", "date", "open", "high", "low", "close", "volume", "error"}
}

// Record renders the row as a CSV record matching RowHeader.
// Error rows leave the bar columns empty.
func (r Row) Record() []string {
	if r.IsError() {
		return []string{r.Symbol, "", "", "", "", "", "", r.Err}
	}

	return []string{
		r.Symbol,
		r.Date.Format(time.RFC3339),
		formatPrice(r.Open),
		formatPrice(r.High),
		formatPrice(r.Low),
		formatPrice(r.Close),
		formatPrice(r.Volume),
		"",
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
