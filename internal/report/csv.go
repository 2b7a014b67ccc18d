package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fluxfuzzer/corefuzz/internal/monitor"
)

// WriteCoverageCurve renders the monitor's bounded growth-rate history as a
// CSV of (elapsed_seconds, popcount) rows, one per sample, for plotting a
// run's coverage-over-time curve.
func WriteCoverageCurve(w io.Writer, samples []monitor.GrowthPoint) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"elapsed_seconds", "popcount"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Elapsed.Seconds(), 'f', 3, 64),
			strconv.Itoa(s.Popcount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}
