package pipeline

import (
	"sort"

	"github.com/passbi/passbi_chart/internal/models"
)

// SelectRoutes keeps the trips whose route_id matches one of the selected labels after mapping.
func SelectRoutes(trips []models.Trip, labels []string, mapper LabelMapper) []models.Trip {
	if mapper == nil {
		mapper = IdentityLabels
	}

	wanted := make(map[string]bool, len(labels))
	for _, label := range labels {
		wanted[mapper(label)] = true
	}

	selected := []models.Trip{}
	if len(wanted) == 0 {
		return selected
	}
	for _, trip := range trips {
		if wanted[trip.RouteID] {
			selected = append(selected, trip)
		}
	}
	return selected
}

// WindowStopTimes keeps rows whose arrival lies in [startSeconds, endSeconds].
// An inverted window yields no rows.
func WindowStopTimes(rows []models.EnrichedStop, startSeconds, endSeconds int) []models.EnrichedStop {
	windowed := []models.EnrichedStop{}
	if startSeconds > endSeconds {
		return windowed
	}
	for _, row := range rows {
		if row.ArrivalTimestamp >= startSeconds && row.ArrivalTimestamp <= endSeconds {
			windowed = append(windowed, row)
		}
	}
	return windowed
}

// GroupAndPrune attaches rows to their trips, orders each trip by stop_sequence and
// drops trips left without stops. Trips keep their input order.
func GroupAndPrune(trips []models.Trip, rows []models.EnrichedStop, routeNames func(routeID string) *string) []models.ProcessedTrip {
	byTrip := make(map[string][]models.EnrichedStop)
	for _, row := range rows {
		byTrip[row.TripID] = append(byTrip[row.TripID], row)
	}

	processed := []models.ProcessedTrip{}
	for _, trip := range trips {
		stops := byTrip[trip.TripID]
		if len(stops) == 0 {
			continue
		}
		// A trip listed twice must not share its stop slice.
		delete(byTrip, trip.TripID)

		sort.SliceStable(stops, func(a, b int) bool {
			return stops[a].StopSequence < stops[b].StopSequence
		})

		var shortName *string
		if routeNames != nil {
			shortName = routeNames(trip.RouteID)
		}

		processed = append(processed, models.ProcessedTrip{
			TripID:         trip.TripID,
			RouteID:        trip.RouteID,
			ServiceID:      trip.ServiceID,
			TripHeadsign:   trip.TripHeadsign,
			TripShortName:  trip.TripShortName,
			DirectionID:    trip.DirectionID,
			BlockID:        trip.BlockID,
			ShapeID:        trip.ShapeID,
			RouteShortName: shortName,
			Stops:          stops,
		})
	}
	return processed
}
