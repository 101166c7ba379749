package assets

import (
	"time"

	"github.com/shopspring/decimal"

	"poa/internal/errs"
	"poa/internal/fx"
	"poa/internal/gateway/exchange"
	"poa/internal/venue"
)

// Report 汇总报告。Entries 保持查询顺序。
type Report struct {
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generated_at"`
	Entries     []Entry                    `json:"entries" yaml:"entries"`
	Failures    []Failure                  `json:"failures,omitempty" yaml:"failures,omitempty"`
	Rate        *fx.Rate                   `json:"rate,omitempty" yaml:"rate,omitempty"`
	Totals      map[string]decimal.Decimal `json:"totals" yaml:"totals"`
}

// Entry is one venue's line in the report. Total is in Currency.
type Entry struct {
	Venue        venue.ID           `json:"venue" yaml:"venue"`
	Currency     string             `json:"currency" yaml:"currency"`
	Total        decimal.Decimal    `json:"total" yaml:"total"`
	Holdings     []exchange.Holding `json:"holdings" yaml:"holdings"`
	HoldingCount int                `json:"holding_count" yaml:"holding_count"`
	Domestic     *Part              `json:"domestic,omitempty" yaml:"domestic,omitempty"`
	Overseas     *Part              `json:"overseas,omitempty" yaml:"overseas,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at" yaml:"updated_at"`
}

// Part is the domestic or overseas half of a brokerage entry.
type Part struct {
	Currency  string             `json:"currency" yaml:"currency"`
	Total     decimal.Decimal    `json:"total" yaml:"total"`
	TotalKRW  decimal.Decimal    `json:"total_krw,omitempty" yaml:"total_krw,omitempty"`
	Holdings  []exchange.Holding `json:"holdings" yaml:"holdings"`
	Rate      decimal.Decimal    `json:"rate,omitempty" yaml:"rate,omitempty"`
	RateIsEst bool               `json:"rate_is_estimate,omitempty" yaml:"rate_is_estimate,omitempty"`
}

// Failure records a venue left out of the report.
type Failure struct {
	Venue venue.ID `json:"venue" yaml:"venue"`
	Kind  string   `json:"kind" yaml:"kind"`
	Error string   `json:"error" yaml:"error"`
	err   error
}

func newFailure(id venue.ID, err error) Failure {
	kind := "unknown"
	if k := errs.Kind(err); k != nil {
		kind = k.Error()
	}
	return Failure{Venue: id, Kind: kind, Error: err.Error(), err: err}
}

// Err returns the original error.
func (f Failure) Err() error { return f.err }

// Empty reports whether no venue produced an entry.
func (r Report) Empty() bool { return len(r.Entries) == 0 }

// Entry returns the entry for id.
func (r Report) Entry(id venue.ID) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Venue == id {
			return e, true
		}
	}
	return Entry{}, false
}
