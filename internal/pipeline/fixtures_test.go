package pipeline

import (
	"time"

	"github.com/passbi/passbi_chart/internal/models"
)

var refDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// scenarioFeed is one trip on route "1" calling at A and B.
func scenarioFeed() *models.Feed {
	return &models.Feed{
		Version: "v1",
		Stops: []models.Stop{
			{StopID: "s1", StopName: strPtr("A")},
			{StopID: "s2", StopName: strPtr("B")},
		},
		Routes: []models.Route{
			{RouteID: "1", RouteShortName: strPtr("S1")},
		},
		Trips: []models.Trip{
			{TripID: "t1", RouteID: "1", ServiceID: "wk", TripHeadsign: "B"},
		},
		StopTimes: []models.StopTime{
			{TripID: "t1", StopID: "s1", ArrivalTime: "08:00:00", DepartureTime: "08:01:00", StopSequence: 1},
			{TripID: "t1", StopID: "s2", ArrivalTime: "08:10:00", DepartureTime: "08:10:00", StopSequence: 2},
		},
	}
}
