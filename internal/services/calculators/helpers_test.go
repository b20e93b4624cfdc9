package calculators

import (
	"math"
	"time"

	"FactorLab/internal/domain/models"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// seriesOf builds a series from equal length columns.
func seriesOf(id string, cols map[string][]float64) *models.Series {
	s := models.NewSeries(id)
	n := 0
	for _, c := range cols {
		n = len(c)
		break
	}
	for i := 0; i < n; i++ {
		row := make(map[string]float64, len(cols))
		for k, c := range cols {
			row[k] = c[i]
		}
		s.Append(start.AddDate(0, 0, i), row)
	}
	return s
}

func closes(xs ...float64) *models.Series {
	return seriesOf("T", map[string][]float64{models.ColClose: xs})
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(from float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

// synthetic produces a deterministic daily series carrying every standard column.
func synthetic(id string, n int) *models.Series {
	cols := map[string][]float64{}
	for i := 0; i < n; i++ {
		x := float64(i)
		c := 100 + 10*math.Sin(x/5) + 0.1*x
		cols[models.ColClose] = append(cols[models.ColClose], c)
		cols[models.ColOpen] = append(cols[models.ColOpen], c-0.5*math.Cos(x))
		cols[models.ColHigh] = append(cols[models.ColHigh], c+1)
		cols[models.ColLow] = append(cols[models.ColLow], c-1)
		cols[models.ColVolume] = append(cols[models.ColVolume], 1000+100*math.Cos(x))
		cols[models.ColForeignNet] = append(cols[models.ColForeignNet], 1000*math.Sin(x/3))
		cols[models.ColTrustNet] = append(cols[models.ColTrustNet], 500*math.Cos(x/4))
		cols[models.ColDealerNet] = append(cols[models.ColDealerNet], 200*math.Sin(x/2))
		cols[models.ColMarginBalance] = append(cols[models.ColMarginBalance], 10000+10*x)
		cols[models.ColShortBalance] = append(cols[models.ColShortBalance], 1000+x)
	}
	return seriesOf(id, cols)
}
