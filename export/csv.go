package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hupe1980/vecsim/rank"
)

// CSV writes t with a header row of {id}_1,{id}_2,similarity,rank. Scores use
// the shortest representation that parses back to the same float64.
func CSV(w io.Writer, t *rank.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, 4)
	for i := range t.Len() {
		r := t.At(i)
		rec[0] = r.Source
		rec[1] = r.Target
		rec[2] = strconv.FormatFloat(r.Score, 'g', -1, 64)
		rec[3] = strconv.Itoa(r.Rank)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
