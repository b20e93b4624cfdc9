package repository

import "fmt"

// Table names, unqualified. The client prefixes the database.
const (
	TableDailyBars       = "daily_bars"
	TableFactorResults   = "factor_results"
	TableStrategySignals = "strategy_signals"
)

// Schema returns the DDL for every table the service reads or writes.
func Schema(database string) []string {
	q := func(t string) string { return database + "." + t }
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    trade_date     Date,
    stock_id       LowCardinality(String),
    open           Float64,
    high           Float64,
    low            Float64,
    close          Float64,
    volume         Float64,
    foreign_net    Nullable(Float64),
    trust_net      Nullable(Float64),
    dealer_net     Nullable(Float64),
    margin_balance Nullable(Float64),
    short_balance  Nullable(Float64)
) ENGINE = ReplacingMergeTree
ORDER BY (stock_id, trade_date)`, q(TableDailyBars)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    stock_id         LowCardinality(String),
    calculation_date Date,
    payload          String,
    error_count      UInt16,
    computed_at      DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(computed_at)
ORDER BY (stock_id, calculation_date)`, q(TableFactorResults)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    signal_id          String,
    execution_id       String,
    strategy_id        LowCardinality(String),
    strategy_version   UInt32,
    stock_id           LowCardinality(String),
    trade_date         Date,
    signal_type        LowCardinality(String),
    confidence_score   Float64,
    matched_conditions String,
    factor_values      String,
    created_at         DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(trade_date)
ORDER BY (strategy_id, trade_date, stock_id)`, q(TableStrategySignals)),
	}
}
