package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"worldhousing/server/internal/currency"
	"worldhousing/server/internal/database"
	"worldhousing/server/internal/housing"
)

type Handler struct {
	db      *database.Database
	service *housing.Service
	logger  *logrus.Logger
}

func NewHandler(db *database.Database, service *housing.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:      db,
		service: service,
		logger:  logger,
	}
}

// GetCountries lists all supported countries with their states.
func (h *Handler) GetCountries(c *gin.Context) {
	countries, err := h.db.GetCountries()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get countries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get countries"})
		return
	}

	c.JSON(http.StatusOK, countries)
}

// GetCountryStates lists the states of one country.
func (h *Handler) GetCountryStates(c *gin.Context) {
	country, err := h.db.GetCountryByKey(c.Param("country"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	states, err := h.db.GetCountryStates(country.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get country states")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get country states"})
		return
	}

	c.JSON(http.StatusOK, states)
}

// GetHousingData serves a single month of housing data. With a states query
// parameter the response carries one entry per state, otherwise the national
// aggregate.
func (h *Handler) GetHousingData(c *gin.Context) {
	q, ok := h.housingQuery(c, false)
	if !ok {
		return
	}

	records, err := h.service.FetchHousingData(c.Request.Context(), q)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Housing data not found"})
		return
	}

	if len(q.States) > 0 {
		c.JSON(http.StatusOK, serializeStateStats(records))
		return
	}
	c.JSON(http.StatusOK, serializeStats(records[0]))
}

// GetHousingDataRange serves an inclusive month range of housing data,
// including the compound variation over the range.
func (h *Handler) GetHousingDataRange(c *gin.Context) {
	q, ok := h.housingQuery(c, true)
	if !ok {
		return
	}

	records, err := h.service.FetchHousingData(c.Request.Context(), q)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Housing data not found"})
		return
	}

	if len(q.States) > 0 {
		c.JSON(http.StatusOK, serializeStateRanges(records))
		return
	}
	c.JSON(http.StatusOK, serializeRange(records))
}

// housingQuery builds the service query from path and query parameters.
// States arrive as a dash-separated abbreviation list and are lowercased
// here; the core carries them through untouched.
func (h *Handler) housingQuery(c *gin.Context, withRange bool) (housing.Query, bool) {
	q := housing.Query{Country: c.Param("country")}

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year value"})
		return q, false
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid month value"})
		return q, false
	}
	q.Year, q.Month = year, month

	if withRange {
		finalYear, err := strconv.Atoi(c.Param("finalYear"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid final year value"})
			return q, false
		}
		finalMonth, err := strconv.Atoi(c.Param("finalMonth"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid final month value"})
			return q, false
		}
		q.FinalYear, q.FinalMonth = &finalYear, &finalMonth
	}

	if states := c.Query("states"); states != "" {
		q.States = strings.Split(strings.ToLower(states), "-")
	}
	q.IndividualRemote, _ = strconv.ParseBool(c.DefaultQuery("individual", "false"))

	return q, true
}

func (h *Handler) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, housing.ErrInvalidMonth), errors.Is(err, housing.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, housing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, housing.ErrRemoteUnavailable), errors.Is(err, currency.ErrUnavailable):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Failed to get housing data")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
