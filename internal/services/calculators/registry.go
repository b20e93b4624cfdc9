package calculators

import "FactorLab/internal/services/factor"

// All returns one instance of every built-in calculator.
func All() []factor.Calculator {
	return []factor.Calculator{
		NewMovingAverage(),
		NewEMA(),
		NewMACross(),
		NewMACD(),
		NewLinearRegression(),

		NewRSI(),
		NewKD(),
		NewCCI(),
		NewWilliamsR(),
		NewVolumeRatio(),

		NewBollinger(),
		NewATR(),
		NewRealizedVolatility(),

		NewStdDev(),
		NewHurst(),

		NewInstitutionalFlow(),
		NewContinuousDays(),

		NewMarginChange(),

		NewCandlestick(),

		NewForeignOutlier(),
		NewVolumeSpike(),
		NewPriceBreakout(),
	}
}

// NewRegistry builds a registry of every built-in calculator.
func NewRegistry() *factor.Registry {
	return factor.NewRegistry(All()...)
}
