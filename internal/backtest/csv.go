package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPriceDecimals is used when a caller passes a negative precision.
const DefaultPriceDecimals = 2

func WriteLedgerCSV(path string, ledger []LedgerRow, priceDecimals int) error {
	return writeFile(path, func(w io.Writer) error { return WriteLedger(w, ledger, priceDecimals) })
}

// WriteLedger writes one row per time step. Steps without a price leave the
// price column empty.
func WriteLedger(out io.Writer, ledger []LedgerRow, priceDecimals int) error {
	w := csv.NewWriter(out)

	header := []string{
		"index",
		"timestamp",
		"demand_mw",
		"renewables_mw",
		"effective_demand_mw",
		"capacity_mw",
		"price",
		"status",
		"price_setter",
		"setter_technology",
		"historical_price",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range ledger {
		price := ""
		if r.HasPrice() {
			price = fmtPrice(r.Price, priceDecimals)
		}
		historical := ""
		if r.HasHistorical {
			historical = fmtPrice(r.HistoricalPrice, priceDecimals)
		}
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.TimeStep),
			fmtFloat(r.DemandMW),
			fmtFloat(r.RenewableMW),
			fmtFloat(r.EffectiveDemandMW),
			fmtFloat(r.CapacityMW),
			price,
			string(r.Status),
			r.PriceSetter,
			string(r.SetterTechnology),
			historical,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func WriteDispatchCSV(path string, ledger []LedgerRow, units []string) error {
	return writeFile(path, func(w io.Writer) error { return WriteDispatch(w, ledger, units) })
}

// WriteDispatch writes the dispatch in long format, one row per time step
// and unit. Steps without a dispatch are skipped.
func WriteDispatch(out io.Writer, ledger []LedgerRow, units []string) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"timestamp", "unit", "output_mw"}); err != nil {
		return err
	}
	for _, r := range ledger {
		if r.Dispatch == nil {
			continue
		}
		for _, id := range units {
			if err := w.Write([]string{fmtTime(r.TimeStep), id, fmtFloat(r.Dispatch[id])}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// fmtPrice rounds half away from zero to a fixed number of decimals.
func fmtPrice(x float64, decimals int) string {
	if decimals < 0 {
		decimals = DefaultPriceDecimals
	}
	return decimal.NewFromFloat(x).StringFixed(int32(decimals))
}
