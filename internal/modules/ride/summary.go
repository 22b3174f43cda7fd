package ride

// Summary is the driver dashboard header.
type Summary struct {
	Active     *Ride   `json:"active,omitempty"`
	TotalRides int     `json:"total_rides"`
	Completed  int     `json:"completed"`
	Earnings   float64 `json:"earnings"`
}

// Summarize picks the first non-terminal ride as the active one and sums the
// fares of completed rides.
func Summarize(rides []Ride) Summary {
	s := Summary{TotalRides: len(rides)}
	for i := range rides {
		r := rides[i]
		if r.Status == StatusCompleted {
			s.Completed++
			s.Earnings += r.Fare
			continue
		}
		if s.Active == nil && !r.Status.Terminal() {
			s.Active = &r
		}
	}
	return s
}
