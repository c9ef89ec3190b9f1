package reconcile

import (
	"fmt"
	"log"
	"sort"

	"pricewatch/internal/database"
)

// FillGaps rewrites real prices over a snapshot of all forecasts up to
// the given day. Missing values bounded by known neighbors in a product's
// day-ordered sequence are linearly interpolated; values at the edges
// with no bound fall back to the forecast's own prediction. Every
// snapshot row is written back, so re-running against already-filled data
// recomputes the same values.
func (r *Reconciler) FillGaps(today database.Day) (int, error) {
	snapshot, err := r.db.GetForecastsThrough(today)
	if err != nil {
		return 0, fmt.Errorf("loading forecast snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		log.Println("No forecasts to fill")
		return 0, nil
	}

	rows := dedupeByKey(snapshot)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProductID != rows[j].ProductID {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].Day.Before(rows[j].Day)
	})

	updates := make([]database.RealPriceUpdate, 0, len(rows))
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].ProductID == rows[start].ProductID {
			end++
		}
		updates = append(updates, fillSeries(rows[start:end])...)
		start = end
	}

	count, err := r.db.ApplyRealPrices(updates)
	if err != nil {
		return 0, fmt.Errorf("writing filled prices: %w", err)
	}
	log.Printf("Gap fill complete: %d forecasts written", count)
	return count, nil
}

// dedupeByKey keeps one row per (product, day), the first in the stable
// (product, day, id) read order.
func dedupeByKey(forecasts []database.Forecast) []database.Forecast {
	seen := make(map[matchKey]struct{}, len(forecasts))
	out := make([]database.Forecast, 0, len(forecasts))
	for _, f := range forecasts {
		key := matchKey{f.ProductID, f.Day}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// fillSeries computes a real price for every row of one product's
// day-ordered sequence and returns writes for the full sequence.
func fillSeries(series []database.Forecast) []database.RealPriceUpdate {
	type filled struct {
		price  float64
		source string
	}
	values := make([]filled, len(series))

	for i, f := range series {
		if f.RealPrice != nil {
			source := database.SourceObserved
			if f.PriceSource != nil {
				source = *f.PriceSource
			}
			values[i] = filled{*f.RealPrice, source}
		}
	}

	// Interpolate runs of missing values bounded by known values on both
	// sides. Positions are equally spaced, matching the per-day sequence.
	for i := 0; i < len(series); i++ {
		if series[i].RealPrice != nil {
			continue
		}
		prev := i - 1
		next := i
		for next < len(series) && series[next].RealPrice == nil {
			next++
		}
		if prev >= 0 && next < len(series) {
			lo := *series[prev].RealPrice
			hi := *series[next].RealPrice
			span := float64(next - prev)
			for j := i; j < next; j++ {
				v := lo + (hi-lo)*float64(j-prev)/span
				values[j] = filled{v, database.SourceInterpolated}
			}
		} else {
			// No bound on one side: the model's own prediction stands in.
			for j := i; j < next; j++ {
				values[j] = filled{series[j].PredictedPrice, database.SourcePredicted}
			}
		}
		i = next - 1
	}

	updates := make([]database.RealPriceUpdate, len(series))
	for i, f := range series {
		updates[i] = database.RealPriceUpdate{
			ForecastID: f.ID,
			RealPrice:  values[i].price,
			Source:     values[i].source,
		}
	}
	return updates
}
