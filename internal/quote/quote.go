// Package quote computes the priced stay a conversation is offered
// (spec §3 "Quote option", §9 Design Notes "QuoteUnavailable"): a
// tagged result over {Ok(total_cents), Unavailable(reason_code, meta)}
// rather than a thrown exception, walking the candidate stay night by
// night against room_type_rates and ari_days.
package quote

import (
	"context"
	"time"

	"github.com/hotelly/hotelly/internal/store"
)

// Reason is one of the closed set of codes a quote can fail with.
// Every night that disqualifies a stay maps to exactly one of these;
// the first one encountered, in date order, is returned.
type Reason string

const (
	ReasonPropertyNotFound     Reason = "property_not_found"
	ReasonRoomTypeNotFound     Reason = "room_type_not_found"
	ReasonInvalidOccupancy     Reason = "invalid_occupancy"
	ReasonInvalidDateRange     Reason = "invalid_date_range"
	ReasonMissingRate          Reason = "missing_rate"
	ReasonBlocked              Reason = "blocked"
	ReasonClosedToArrival      Reason = "closed_to_arrival"
	ReasonClosedToDeparture    Reason = "closed_to_departure"
	ReasonBelowMinNights       Reason = "below_min_nights"
	ReasonAboveMaxNights       Reason = "above_max_nights"
	ReasonNoInventory          Reason = "no_inventory"
	ReasonAmbiguousChildBucket Reason = "ambiguous_child_bucket"
	ReasonMissingPaxPrice      Reason = "missing_pax_price"
	ReasonMissingChildPrice    Reason = "missing_child_price"
)

// Input carries the validated candidate stay.
type Input struct {
	PropertyID   string
	RoomTypeID   string
	Checkin      time.Time
	Checkout     time.Time
	AdultCount   int
	ChildrenAges []int
}

// Result is the tagged outcome: either Ok with a total, or a Reason
// plus supporting Meta for the caller (the dashboard quote endpoint,
// or the intent-driven worker flow) to explain the refusal.
type Result struct {
	Ok         bool
	TotalCents int64
	Reason     Reason
	Meta       map[string]any
}

// Engine computes quotes against the shared pool.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

type rateRow struct {
	date                  time.Time
	price1, price2        int64
	price3, price4        *int64
	priceChd1             *int64
	priceChd2             *int64
	priceChd3             *int64
	minNights, maxNights  *int
	closedToArrival       bool
	closedToDeparture     bool
	isBlocked             bool
}

// Quote implements the night-by-night pricing walk. Arrival/departure
// restriction flags are enforced only against the candidate stay's
// own arrival and departure nights (Open Questions decision), not
// against interior nights the stay merely spans.
func (e *Engine) Quote(ctx context.Context, in Input) (*Result, error) {
	if !in.Checkout.After(in.Checkin) {
		return &Result{Reason: ReasonInvalidDateRange}, nil
	}
	if in.AdultCount < 1 || in.AdultCount > 4 {
		return &Result{Reason: ReasonInvalidOccupancy}, nil
	}

	var propertyExists bool
	err := e.store.Pool.QueryRow(ctx, `SELECT true FROM properties WHERE id = $1`, in.PropertyID).Scan(&propertyExists)
	if err != nil {
		if store.IsNoRows(err) {
			return &Result{Reason: ReasonPropertyNotFound}, nil
		}
		return nil, err
	}

	var maxOccupancy int
	err = e.store.Pool.QueryRow(ctx, `SELECT max_occupancy FROM room_types WHERE property_id = $1 AND id = $2 AND deleted_at IS NULL`,
		in.PropertyID, in.RoomTypeID).Scan(&maxOccupancy)
	if err != nil {
		if store.IsNoRows(err) {
			return &Result{Reason: ReasonRoomTypeNotFound}, nil
		}
		return nil, err
	}
	if in.AdultCount+len(in.ChildrenAges) > maxOccupancy {
		return &Result{Reason: ReasonInvalidOccupancy, Meta: map[string]any{"max_occupancy": maxOccupancy}}, nil
	}

	childBuckets, reason, err := e.resolveChildBuckets(ctx, in.PropertyID, in.ChildrenAges)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &Result{Reason: reason}, nil
	}

	checkinDate := in.Checkin
	nights := int(in.Checkout.Sub(in.Checkin).Hours() / 24)

	var total int64
	for d := in.Checkin; d.Before(in.Checkout); d = d.AddDate(0, 0, 1) {
		row, err := e.rateFor(ctx, in.PropertyID, in.RoomTypeID, d)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return &Result{Reason: ReasonMissingRate, Meta: map[string]any{"date": d.Format("2006-01-02")}}, nil
		}
		if row.isBlocked {
			return &Result{Reason: ReasonBlocked, Meta: map[string]any{"date": d.Format("2006-01-02")}}, nil
		}
		if d.Equal(checkinDate) {
			if row.closedToArrival {
				return &Result{Reason: ReasonClosedToArrival}, nil
			}
			if row.minNights != nil && nights < *row.minNights {
				return &Result{Reason: ReasonBelowMinNights, Meta: map[string]any{"min_nights": *row.minNights}}, nil
			}
			if row.maxNights != nil && nights > *row.maxNights {
				return &Result{Reason: ReasonAboveMaxNights, Meta: map[string]any{"max_nights": *row.maxNights}}, nil
			}
		}

		paxPrice, reason := paxPriceFor(row, in.AdultCount)
		if reason != "" {
			return &Result{Reason: reason}, nil
		}
		childCents, reason := childPriceFor(row, childBuckets)
		if reason != "" {
			return &Result{Reason: reason}, nil
		}
		total += paxPrice + childCents

		available, err := e.availableOn(ctx, in.PropertyID, in.RoomTypeID, d)
		if err != nil {
			return nil, err
		}
		if available < 1 {
			return &Result{Reason: ReasonNoInventory, Meta: map[string]any{"date": d.Format("2006-01-02")}}, nil
		}
	}

	departureRow, err := e.rateFor(ctx, in.PropertyID, in.RoomTypeID, in.Checkout)
	if err != nil {
		return nil, err
	}
	if departureRow != nil && departureRow.closedToDeparture {
		return &Result{Reason: ReasonClosedToDeparture}, nil
	}

	return &Result{Ok: true, TotalCents: total}, nil
}

func (e *Engine) rateFor(ctx context.Context, propertyID, roomTypeID string, date time.Time) (*rateRow, error) {
	var row rateRow
	err := e.store.Pool.QueryRow(ctx, `
		SELECT date, price_1pax_cents, price_2pax_cents, price_3pax_cents, price_4pax_cents,
			price_bucket1_chd_cents, price_bucket2_chd_cents, price_bucket3_chd_cents,
			min_nights, max_nights, closed_to_arrival, closed_to_departure, is_blocked
		FROM room_type_rates WHERE property_id = $1 AND room_type_id = $2 AND date = $3`,
		propertyID, roomTypeID, date).Scan(
		&row.date, &row.price1, &row.price2, &row.price3, &row.price4,
		&row.priceChd1, &row.priceChd2, &row.priceChd3,
		&row.minNights, &row.maxNights, &row.closedToArrival, &row.closedToDeparture, &row.isBlocked)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (e *Engine) availableOn(ctx context.Context, propertyID, roomTypeID string, date time.Time) (int, error) {
	var total, booked, held int
	err := e.store.Pool.QueryRow(ctx, `SELECT inv_total, inv_booked, inv_held FROM ari_days WHERE property_id = $1 AND room_type_id = $2 AND date = $3`,
		propertyID, roomTypeID, date).Scan(&total, &booked, &held)
	if err != nil {
		if store.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	available := total - booked - held
	if available < 0 {
		return 0, nil
	}
	return available, nil
}

// resolveChildBuckets maps each child's age to its property-configured
// bucket (1, 2, or 3). An age matching no bucket is a refusal: the
// property has not priced that age, not a silent default.
func (e *Engine) resolveChildBuckets(ctx context.Context, propertyID string, ages []int) ([]int, Reason, error) {
	if len(ages) == 0 {
		return nil, "", nil
	}
	rows, err := e.store.Pool.Query(ctx, `SELECT bucket, min_age, max_age FROM child_age_buckets WHERE property_id = $1`, propertyID)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	type bucketRange struct{ bucket, min, max int }
	var buckets []bucketRange
	for rows.Next() {
		var b bucketRange
		if err := rows.Scan(&b.bucket, &b.min, &b.max); err != nil {
			return nil, "", err
		}
		buckets = append(buckets, b)
	}

	resolved := make([]int, 0, len(ages))
	for _, age := range ages {
		matched := 0
		for _, b := range buckets {
			if age >= b.min && age <= b.max {
				matched = b.bucket
				break
			}
		}
		if matched == 0 {
			return nil, ReasonAmbiguousChildBucket, nil
		}
		resolved = append(resolved, matched)
	}
	return resolved, "", nil
}

// childPriceFor sums the per-night child add-on for every resolved
// bucket. A bucket with no price configured for this night is its own
// missing_child_price refusal, distinct from an adult pax-price gap,
// so the dashboard and the WhatsApp flow can tell staff which side of
// the rate sheet needs filling in.
func childPriceFor(row *rateRow, buckets []int) (int64, Reason) {
	var total int64
	for _, b := range buckets {
		var price *int64
		switch b {
		case 1:
			price = row.priceChd1
		case 2:
			price = row.priceChd2
		case 3:
			price = row.priceChd3
		}
		if price == nil {
			return 0, ReasonMissingChildPrice
		}
		total += *price
	}
	return total, ""
}

// paxPriceFor selects the per-night base price for adultCount guests.
// 3- and 4-pax prices are optional columns (a property may only sell
// up to double occupancy); their absence for a requested count is a
// missing_pax_price refusal, not a silent fallback to a lower tier.
func paxPriceFor(row *rateRow, adultCount int) (int64, Reason) {
	switch adultCount {
	case 1:
		return row.price1, ""
	case 2:
		return row.price2, ""
	case 3:
		if row.price3 == nil {
			return 0, ReasonMissingPaxPrice
		}
		return *row.price3, ""
	case 4:
		if row.price4 == nil {
			return 0, ReasonMissingPaxPrice
		}
		return *row.price4, ""
	default:
		return 0, ReasonInvalidOccupancy
	}
}
