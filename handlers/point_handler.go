package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"ecoleta/middleware"
	"ecoleta/models"
	"ecoleta/services"
	"ecoleta/utils/errors"

	"github.com/gorilla/mux"
)

// defaultRadiusKm applies when lat/lon are given without a radius
const defaultRadiusKm = 10

type PointHandler struct {
	pointService *services.PointService
}

func NewPointHandler(pointService *services.PointService) *PointHandler {
	return &PointHandler{pointService: pointService}
}

func (h *PointHandler) CreatePoint(w http.ResponseWriter, r *http.Request) {
	var input models.CreatePointInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, errors.Invalid(err.Error()))
		return
	}

	point, err := h.pointService.CreatePoint(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreatedPoint{Point: point, Items: point.Items})
}

func (h *PointHandler) ListPoints(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.PointFilter{
		City: strings.TrimSpace(query.Get("city")),
		UF:   strings.TrimSpace(query.Get("uf")),
	}

	items, err := parseIDList(query.Get("items"))
	if err != nil {
		middleware.WriteError(w, errors.Invalid("items must be a comma separated list of ids"))
		return
	}
	filter.Items = items

	// Radius search is optional; lat and lon must come together
	latRaw, lonRaw := query.Get("lat"), query.Get("lon")
	if latRaw != "" || lonRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			middleware.WriteError(w, errors.Invalid("lat must be a number"))
			return
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			middleware.WriteError(w, errors.Invalid("lon must be a number"))
			return
		}
		radius := float64(defaultRadiusKm)
		if raw := query.Get("radius"); raw != "" {
			radius, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				middleware.WriteError(w, errors.Invalid("radius must be a number"))
				return
			}
		}
		near := models.NewGeoPoint(lat, lon)
		filter.Near = &near
		filter.RadiusKm = radius
	}

	points, err := h.pointService.ListPoints(r.Context(), filter)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, points)
}

func (h *PointHandler) GetPoint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		middleware.WriteError(w, errors.Invalid("id must be an integer"))
		return
	}

	detail, err := h.pointService.GetPoint(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
