// Package report renders final account snapshots as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ledgerflow/engine"
)

// WriteSummary writes one row per client: client, available, held, total,
// locked. Amounts carry up to four fractional digits.
func WriteSummary(w io.Writer, snaps []engine.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, s := range snaps {
		row := []string{
			strconv.FormatUint(uint64(s.Client), 10),
			s.Available.String(),
			s.Held.String(),
			s.Total.String(),
			strconv.FormatBool(s.Locked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: write client %d: %w", s.Client, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}
