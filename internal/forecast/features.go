package forecast

import (
	"pricewatch/internal/database"
)

// dayPoint is one collapsed (product, day) reading. Same-day duplicate
// scrapes collapse last-write-wins over the store's time-ordered read.
type dayPoint struct {
	day    database.Day
	price  float64
	rating float64
}

// series is one product's day-ordered price history.
type series struct {
	productID int64
	points    []dayPoint
}

// buildSeries groups time-ordered observations into per-product daily
// series. Input order is (product, day, scraped_at), so a later scrape
// of the same day overwrites the earlier one.
func buildSeries(observations []database.Observation) []series {
	var out []series
	index := make(map[int64]int)

	for _, o := range observations {
		i, ok := index[o.ProductID]
		if !ok {
			i = len(out)
			index[o.ProductID] = i
			out = append(out, series{productID: o.ProductID})
		}

		rating := 0.0
		if o.Rating != nil {
			rating = *o.Rating
		}
		p := dayPoint{day: o.Day, price: o.Price, rating: rating}

		points := out[i].points
		if n := len(points); n > 0 && points[n-1].day == o.Day {
			points[n-1] = p
		} else {
			points = append(points, p)
		}
		out[i].points = points
	}
	return out
}

// snapshotAt builds the feature snapshot for position i of a series.
// Moving averages are trailing windows including the current point, with
// shorter prefixes averaged as-is.
func snapshotAt(s series, i int, start database.Day) database.FeatureSnapshot {
	t := s.points[i].day.Time()
	return database.FeatureSnapshot{
		DayOfMonth:     t.Day(),
		Month:          int(t.Month()),
		DayOfWeek:      int(t.Weekday()),
		DaysSinceStart: database.DaysBetween(start, s.points[i].day),
		Rating:         s.points[i].rating,
		MovingAvg3:     trailingMean(s.points, i, 3),
		MovingAvg7:     trailingMean(s.points, i, 7),
	}
}

// futureSnapshot builds the snapshot for a day beyond the observed
// history: the rating is the series mean and the moving averages freeze
// at the last observed windows.
func futureSnapshot(s series, day, start database.Day) database.FeatureSnapshot {
	t := day.Time()
	last := len(s.points) - 1
	return database.FeatureSnapshot{
		DayOfMonth:     t.Day(),
		Month:          int(t.Month()),
		DayOfWeek:      int(t.Weekday()),
		DaysSinceStart: database.DaysBetween(start, day),
		Rating:         meanRating(s.points),
		MovingAvg3:     trailingMean(s.points, last, 3),
		MovingAvg7:     trailingMean(s.points, last, 7),
	}
}

// featureVector is the model input order shared by training and
// prediction.
func featureVector(f database.FeatureSnapshot) []float64 {
	return []float64{
		f.Rating,
		float64(f.DayOfMonth),
		float64(f.Month),
		float64(f.DayOfWeek),
		float64(f.DaysSinceStart),
		f.MovingAvg3,
		f.MovingAvg7,
	}
}

func trailingMean(points []dayPoint, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	var sum float64
	for j := lo; j <= i; j++ {
		sum += points[j].price
	}
	return sum / float64(i-lo+1)
}

func meanRating(points []dayPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.rating
	}
	return sum / float64(len(points))
}
