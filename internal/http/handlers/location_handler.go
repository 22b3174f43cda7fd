// README: Stateless location handlers: one-off geocode and route lookups.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"myride/internal/maps"
	"myride/internal/modules/location"
	"myride/internal/types"
)

type LocationHandler struct {
	geocoder maps.Geocoder
	router   maps.Router
	limit    int
	lang     string
}

func NewLocationHandler(geocoder maps.Geocoder, router maps.Router, limit int, lang string) *LocationHandler {
	return &LocationHandler{geocoder: geocoder, router: router, limit: limit, lang: lang}
}

// Search geocodes ?text= without debouncing.
func (h *LocationHandler) Search(c *gin.Context) {
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		writeJSON(c, http.StatusOK, gin.H{"places": []maps.Place{}})
		return
	}
	places, err := h.geocoder.Lookup(c.Request.Context(), maps.GeocodeRequest{Text: text, Limit: h.limit, Lang: h.lang})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if places == nil {
		places = []maps.Place{}
	}
	writeJSON(c, http.StatusOK, gin.H{"places": places})
}

// Route returns the driving path and straight-line distance between ?pickup=lat,lng and ?drop=lat,lng.
func (h *LocationHandler) Route(c *gin.Context) {
	pickup, err := parsePoint(c.Query("pickup"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid pickup: "+err.Error())
		return
	}
	drop, err := parsePoint(c.Query("drop"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid drop: "+err.Error())
		return
	}
	path, err := h.router.Route(c.Request.Context(), maps.RouteRequest{Waypoints: [2]types.Point{pickup, drop}, Mode: maps.ModeDrive})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	km := location.DistanceKm(&pickup, &drop)
	writeJSON(c, http.StatusOK, gin.H{
		"path":        path,
		"distance_km": km,
		"eta_minutes": location.EtaMinutes(km, location.DefaultSpeedKmh),
	})
}

func parsePoint(v string) (types.Point, error) {
	lat, lng, ok := strings.Cut(v, ",")
	if !ok {
		return types.Point{}, fmt.Errorf("want lat,lng")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return types.Point{}, err
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return types.Point{}, err
	}
	if la < -90 || la > 90 || ln < -180 || ln > 180 {
		return types.Point{}, fmt.Errorf("out of range")
	}
	return types.Point{Lat: la, Lng: ln}, nil
}
