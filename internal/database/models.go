package database

// Product is a catalog entry pointing at a page to scrape.
type Product struct {
	ID        int64
	URL       string
	Name      string
	IsActive  bool
	CreatedAt *string
}

// Observation is a single scraped price reading for a product on a day.
// Observations are append-only; the same (product, day) key may carry
// several rows when a product was scraped more than once that day.
type Observation struct {
	ID        int64
	ProductID int64
	Day       Day
	Price     float64
	Rating    *float64
	Title     *string
	URL       *string
	ScrapedAt string
}

// Price source markers for a forecast's real_price column.
const (
	SourceObserved     = "observed"
	SourceInterpolated = "interpolated"
	SourcePredicted    = "predicted"
)

// Forecast is a model-predicted price for a product/day. RealPrice starts
// nil and is resolved exactly once, either from a matching observation or
// by the gap-fill pass; PriceSource records which.
type Forecast struct {
	ID             int64
	ProductID      int64
	Day            Day
	PredictedPrice float64
	RealPrice      *float64
	PriceSource    *string
	Features       FeatureSnapshot
	CreatedAt      *string
}

// FeatureSnapshot holds the feature values the forecast was made from.
type FeatureSnapshot struct {
	DayOfMonth     int
	Month          int
	DayOfWeek      int
	DaysSinceStart int
	Rating         float64
	MovingAvg3     float64
	MovingAvg7     float64
}

// ErrorMetric is the model accuracy record for one product, recomputed
// and overwritten on every evaluation run.
type ErrorMetric struct {
	ProductID   int64
	MAE         float64
	RMSE        float64
	SampleCount int
	UpdatedAt   *string
}

// FactRow is the denormalized reporting record for one (product, day).
type FactRow struct {
	ProductID      int64
	Day            Day
	RealPrice      *float64
	PredictedPrice *float64
	Features       FeatureSnapshot
	MAE            *float64
	RMSE           *float64
	AggregatedAt   *string
}

// Stats contains aggregate database statistics for the status command.
type Stats struct {
	Products            int
	ActiveProducts      int
	Observations        int
	Forecasts           int
	UnresolvedForecasts int
	ProductsWithMetrics int
	FactRows            int
}
