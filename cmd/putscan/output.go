package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/putscan/internal/domain"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

func writeCandidates(w io.Writer, format string, candidates []domain.Candidate) error {
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	switch format {
	case formatTable:
		return writeTable(w, candidates)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}
}

func writeTable(w io.Writer, candidates []domain.Candidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tEXPIRY\tDTE\tSPOT\tSTRIKE\tBID\tASK\tPREMIUM\tDELTA\tPOP%\tROI%\tANN%\t")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			c.Ticker,
			c.Expiry,
			c.DaysToExpiry,
			money(c.Spot),
			money(c.Strike),
			optional(c.Bid, 2),
			optional(c.Ask, 2),
			money(c.Premium),
			optional(c.Delta, 3),
			optional(c.ProbabilityOfProfit, 1),
			decimal.NewFromFloat(c.ROI).StringFixed(2),
			optional(c.AnnualizedROI, 2),
		)
	}
	return tw.Flush()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func optional(v *float64, places int32) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromFloat(*v).StringFixed(places)
}
