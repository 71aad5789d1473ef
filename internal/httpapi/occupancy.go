package httpapi

import (
	"net/http"
	"time"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/availability"
)

type occupancyHandlers struct {
	deps *Deps
}

func newOccupancyHandlers(deps *Deps) *occupancyHandlers {
	return &occupancyHandlers{deps: deps}
}

type dayOccupancyDTO struct {
	RoomTypeID       string `json:"room_type_id"`
	Date             string `json:"date"`
	Total            int    `json:"inv_total"`
	Booked           int    `json:"booked"`
	Held             int    `json:"held"`
	Available        int    `json:"available"`
	OverbookDetected bool   `json:"overbooking_detected,omitempty"`
}

func toDayOccupancyDTO(d availability.DayOccupancy) dayOccupancyDTO {
	return dayOccupancyDTO{
		RoomTypeID:       d.RoomTypeID,
		Date:             d.Date.Format("2006-01-02"),
		Total:            d.Total,
		Booked:           d.Booked,
		Held:             d.Held,
		Available:        d.Available,
		OverbookDetected: d.OverbookDetected,
	}
}

// handleOccupancy implements GET /occupancy?start=...&end=....
func (h *occupancyHandlers) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := h.deps.Availability.Occupancy(r.Context(), propertyID(r), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dayOccupancyDTO, 0, len(days))
	for _, d := range days {
		out = append(out, toDayOccupancyDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleOccupancyGrid implements GET /occupancy/grid: the same data
// reshaped into one row per room type with a date-keyed map, the
// shape a dashboard grid widget renders directly.
func (h *occupancyHandlers) handleOccupancyGrid(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := h.deps.Availability.Occupancy(r.Context(), propertyID(r), start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	grid := make(map[string]map[string]dayOccupancyDTO)
	for _, d := range days {
		row, ok := grid[d.RoomTypeID]
		if !ok {
			row = make(map[string]dayOccupancyDTO)
			grid[d.RoomTypeID] = row
		}
		row[d.Date.Format("2006-01-02")] = toDayOccupancyDTO(d)
	}
	writeJSON(w, http.StatusOK, grid)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "start must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "end must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperr.Validation(apperr.CodeInvalidInput, "end must be after start")
	}
	return start, end, nil
}
