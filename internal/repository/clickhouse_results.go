package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FactorLab/internal/domain/models"
	domrepo "FactorLab/internal/domain/repository"
	pkgch "FactorLab/pkg/clickhouse"
	"FactorLab/pkg/logger"
)

// CHResultStore keeps one JSON payload per (stock_id, calculation_date).
type CHResultStore struct {
	ch    *pkgch.Client
	table string
	log   *logger.Logger
	now   func() time.Time
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)

func NewCHResultStore(ch *pkgch.Client, l *logger.Logger) *CHResultStore {
	if l == nil {
		l = logger.Nop()
	}
	return &CHResultStore{ch: ch, table: ch.Table(TableFactorResults), log: l, now: time.Now}
}

// Init creates the database and tables.
func (s *CHResultStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema(s.ch.Database()))
}

func (s *CHResultStore) SaveResults(ctx context.Context, results []*models.Result) error {
	rows, err := resultRows(results, s.now().UTC())
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (stock_id, calculation_date, payload, error_count, computed_at) VALUES (?, ?, ?, ?, ?)", s.table)
	start := time.Now()
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		s.log.Error("clickhouse save_results error", logger.Int("rows", len(rows)), logger.Error(err))
		return fmt.Errorf("save results: %w", err)
	}
	s.log.Debug("clickhouse save_results ok",
		logger.Int("rows", len(rows)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func resultRows(results []*models.Result, at time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode result %s: %w", r.EntityID, err)
		}
		rows = append(rows, []any{r.EntityID, r.CalculationDate, string(payload), uint16(len(r.Diagnostics.Errors)), at})
	}
	return rows, nil
}

func (s *CHResultStore) GetResult(ctx context.Context, entityID string, date time.Time) (*models.Result, error) {
	q := fmt.Sprintf("SELECT payload FROM %s FINAL WHERE stock_id = ? AND calculation_date = ? LIMIT 1", s.table)
	var payload string
	if err := s.ch.DB().QueryRowContext(ctx, q, entityID, date).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	var r models.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", entityID, err)
	}
	return &r, nil
}

// CHSignalStore appends signals to strategy_signals.
type CHSignalStore struct {
	ch    *pkgch.Client
	table string
	log   *logger.Logger
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func NewCHSignalStore(ch *pkgch.Client, l *logger.Logger) *CHSignalStore {
	if l == nil {
		l = logger.Nop()
	}
	return &CHSignalStore{ch: ch, table: ch.Table(TableStrategySignals), log: l}
}

func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema(s.ch.Database()))
}

func (s *CHSignalStore) SaveSignals(ctx context.Context, signals []*models.Signal) error {
	rows, err := signalRows(signals)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (signal_id, execution_id, strategy_id, strategy_version, stock_id,
        trade_date, signal_type, confidence_score, matched_conditions, factor_values, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		s.log.Error("clickhouse save_signals error", logger.Int("rows", len(rows)), logger.Error(err))
		return fmt.Errorf("save signals: %w", err)
	}
	return nil
}

func signalRows(signals []*models.Signal) ([][]any, error) {
	rows := make([][]any, 0, len(signals))
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		conds, err := json.Marshal(sig.MatchedConditions)
		if err != nil {
			return nil, fmt.Errorf("encode conditions %s: %w", sig.SignalID, err)
		}
		vals, err := json.Marshal(sig.FactorValues)
		if err != nil {
			return nil, fmt.Errorf("encode factor values %s: %w", sig.SignalID, err)
		}
		td, err := time.Parse(time.DateOnly, sig.TradeDate)
		if err != nil {
			return nil, fmt.Errorf("signal %s trade_date: %w", sig.SignalID, err)
		}
		rows = append(rows, []any{
			sig.SignalID, sig.ExecutionID, sig.StrategyID, uint32(sig.StrategyVersion), sig.StockID,
			td, sig.SignalType, sig.ConfidenceScore, string(conds), string(vals), sig.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

func (s *CHSignalStore) ListSignals(ctx context.Context, strategyID string, tradeDate time.Time) ([]*models.Signal, error) {
	q := fmt.Sprintf(`SELECT signal_id, execution_id, strategy_id, strategy_version, stock_id, trade_date,
        signal_type, confidence_score, matched_conditions, factor_values, created_at
        FROM %s WHERE strategy_id = ? AND trade_date = ? ORDER BY signal_id`, s.table)
	rows, err := s.ch.DB().QueryContext(ctx, q, strategyID, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []*models.Signal
	for rows.Next() {
		var (
			sig         models.Signal
			version     uint32
			td          time.Time
			conds, vals string
		)
		if err := rows.Scan(&sig.SignalID, &sig.ExecutionID, &sig.StrategyID, &version, &sig.StockID, &td,
			&sig.SignalType, &sig.ConfidenceScore, &conds, &vals, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.StrategyVersion = int(version)
		sig.TradeDate = td.Format(time.DateOnly)
		if err := json.Unmarshal([]byte(conds), &sig.MatchedConditions); err != nil {
			return nil, fmt.Errorf("decode conditions %s: %w", sig.SignalID, err)
		}
		if err := json.Unmarshal([]byte(vals), &sig.FactorValues); err != nil {
			return nil, fmt.Errorf("decode factor values %s: %w", sig.SignalID, err)
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}
