// Package availability implements the read-only occupancy engine of
// spec §4.7: per room_type, per date counts of total/booked/held
// inventory, derived by unioning the hold-based and manual
// reservation streams rather than trusting a single denormalized
// count.
package availability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/store"
)

// DayOccupancy is one (room_type, date) row of the occupancy report.
type DayOccupancy struct {
	RoomTypeID       string
	Date             time.Time
	Total            int
	Booked           int
	Held             int
	Available        int
	OverbookDetected bool
}

// Engine answers occupancy queries against the shared pool.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Occupancy implements GET /occupancy over the half-open range
// [start, end). inv_total and inv_held come straight from ari_days;
// booked is recomputed from the two reservation streams described in
// spec §4.7 rather than read off ari_days.inv_booked, so the endpoint
// also serves as a live cross-check against the ledger.
func (e *Engine) Occupancy(ctx context.Context, propertyID string, start, end time.Time) ([]DayOccupancy, error) {
	rows, err := e.store.Pool.Query(ctx, `
		WITH ari AS (
			SELECT room_type_id, date, inv_total, inv_held
			FROM ari_days
			WHERE property_id = $1 AND date >= $2 AND date < $3
		),
		hold_based AS (
			SELECT hn.room_type_id, hn.date, count(*) AS n
			FROM hold_nights hn
			JOIN reservations r ON r.hold_id = hn.hold_id
			WHERE hn.property_id = $1
			  AND r.status = ANY ($4)
			  AND hn.date >= $2 AND hn.date < $3
			GROUP BY hn.room_type_id, hn.date
		),
		manual AS (
			SELECT r.room_type_id, gs.night AS date, count(*) AS n
			FROM reservations r
			CROSS JOIN LATERAL generate_series(r.checkin, r.checkout - interval '1 day', interval '1 day') AS gs(night)
			WHERE r.property_id = $1
			  AND r.hold_id IS NULL
			  AND r.status = ANY ($4)
			  AND r.checkin < $3 AND r.checkout > $2
			GROUP BY r.room_type_id, gs.night
		),
		booked AS (
			SELECT room_type_id, date, sum(n) AS n FROM (
				SELECT * FROM hold_based
				UNION ALL
				SELECT * FROM manual
			) u
			GROUP BY room_type_id, date
		)
		SELECT ari.room_type_id, ari.date, ari.inv_total, ari.inv_held, COALESCE(booked.n, 0)
		FROM ari
		LEFT JOIN booked ON booked.room_type_id = ari.room_type_id AND booked.date = ari.date
		ORDER BY ari.room_type_id, ari.date`,
		propertyID, start, end, operationalStatusNames())
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "occupancy query failed", err)
	}
	defer rows.Close()

	var out []DayOccupancy
	for rows.Next() {
		var d DayOccupancy
		var booked int
		if err := rows.Scan(&d.RoomTypeID, &d.Date, &d.Total, &d.Held, &booked); err != nil {
			return nil, apperr.Transient(apperr.CodeTransientFailure, "occupancy row scan failed", err)
		}
		d.Booked = booked

		available, overbooked := clampAvailable(d.Total, d.Booked, d.Held)
		d.Available = available
		d.OverbookDetected = overbooked
		if overbooked {
			log.Warn().
				Str("event", "overbooking_detected").
				Str("property_id", propertyID).
				Str("room_type_id", d.RoomTypeID).
				Time("date", d.Date).
				Int("available_raw", d.Total-d.Booked-d.Held).
				Msg("occupancy available_raw went negative")
		}

		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "occupancy row iteration failed", err)
	}
	return out, nil
}

// clampAvailable implements spec §4.7's available = max(0, inv_total -
// booked - held), reporting whether the raw value was negative so the
// caller can log the PII-safe overbooking warning.
func clampAvailable(total, booked, held int) (available int, overbooked bool) {
	raw := total - booked - held
	if raw < 0 {
		return 0, true
	}
	return raw, false
}

// operationalStatusNames mirrors internal/reservation's operational
// status set without importing that package, to keep availability a
// read-only leaf that only depends on store.
func operationalStatusNames() []string {
	return []string{"pending_payment", "confirmed", "in_house", "checked_out"}
}
