package assets

import (
	"context"

	"poa/internal/venue"
)

// VenueLister names the venues that have credentials.
type VenueLister interface {
	Configured() []venue.ID
}

// Reporter aggregates every configured venue.
type Reporter struct {
	agg    *Aggregator
	venues VenueLister
}

func NewReporter(agg *Aggregator, venues VenueLister) *Reporter {
	return &Reporter{agg: agg, venues: venues}
}

func (r *Reporter) Report(ctx context.Context) Report {
	return r.agg.Aggregate(ctx, r.venues.Configured())
}
