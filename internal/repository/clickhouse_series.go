package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	pkgch "FactorLab/pkg/clickhouse"
	"FactorLab/pkg/logger"
)

// CHSeriesProvider loads daily bars from ClickHouse.
type CHSeriesProvider struct {
	db    *sql.DB
	table string
	log   *logger.Logger
}

var _ domrepo.SeriesProvider = (*CHSeriesProvider)(nil)

func NewCHSeriesProvider(ch *pkgch.Client, l *logger.Logger) *CHSeriesProvider {
	if l == nil {
		l = logger.Nop()
	}
	return &CHSeriesProvider{db: ch.DB(), table: ch.Table(TableDailyBars), log: l}
}

// LoadSeries reads the latest lookbackDays bars up to asOf and returns them oldest first.
// Institutional and margin columns are only attached when every row carries them.
func (s *CHSeriesProvider) LoadSeries(ctx context.Context, entityID string, asOf time.Time, lookbackDays int) (*models.Series, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT trade_date, open, high, low, close, volume,
               foreign_net, trust_net, dealer_net, margin_balance, short_balance
        FROM %s FINAL
        WHERE stock_id = ? AND trade_date <= ?
        ORDER BY trade_date DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, entityID, asOf, lookbackDays)
	if err != nil {
		s.log.Error("clickhouse load_series query error",
			logger.String("stock_id", entityID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("load series %s: %w", entityID, err)
	}
	defer rows.Close()

	bars := make([]bar, 0, lookbackDays)
	for rows.Next() {
		var b bar
		if err := rows.Scan(&b.date, &b.open, &b.high, &b.low, &b.close, &b.volume,
			&b.foreign, &b.trust, &b.dealer, &b.margin, &b.short); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	series := seriesFromBars(entityID, bars)
	s.log.Debug("clickhouse load_series ok",
		logger.String("stock_id", entityID),
		logger.Int("rows", series.Len()),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return series, nil
}

type bar struct {
	date                                  time.Time
	open, high, low, close, volume        float64
	foreign, trust, dealer, margin, short sql.NullFloat64
}

// seriesFromBars reverses newest-first rows into an ascending series.
func seriesFromBars(entityID string, bars []bar) *models.Series {
	s := models.NewSeries(entityID)
	n := len(bars)
	s.Dates = make([]time.Time, n)
	base := []string{models.ColOpen, models.ColHigh, models.ColLow, models.ColClose, models.ColVolume}
	for _, c := range base {
		s.Columns[c] = make([]float64, n)
	}
	optional := map[string][]float64{}
	complete := map[string]bool{
		models.ColForeignNet: n > 0, models.ColTrustNet: n > 0, models.ColDealerNet: n > 0,
		models.ColMarginBalance: n > 0, models.ColShortBalance: n > 0,
	}
	for c := range complete {
		optional[c] = make([]float64, n)
	}

	for i, b := range bars {
		j := n - 1 - i
		s.Dates[j] = b.date.UTC()
		s.Columns[models.ColOpen][j] = b.open
		s.Columns[models.ColHigh][j] = b.high
		s.Columns[models.ColLow][j] = b.low
		s.Columns[models.ColClose][j] = b.close
		s.Columns[models.ColVolume][j] = b.volume
		for c, v := range map[string]sql.NullFloat64{
			models.ColForeignNet: b.foreign, models.ColTrustNet: b.trust, models.ColDealerNet: b.dealer,
			models.ColMarginBalance: b.margin, models.ColShortBalance: b.short,
		} {
			if !v.Valid {
				complete[c] = false
				continue
			}
			optional[c][j] = v.Float64
		}
	}
	for c, ok := range complete {
		if ok {
			s.Columns[c] = optional[c]
		}
	}
	return s
}
