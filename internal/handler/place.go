package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/inventory"
)

type PlaceHandler struct {
	Inventory *inventory.Service
}

func NewPlaceHandler(inv *inventory.Service) *PlaceHandler { return &PlaceHandler{Inventory: inv} }

// Place lists every seat with its reserved dates, grouped by row. With
// ?format=flat the rows are flattened and preceded by their label.
func (h *PlaceHandler) Place(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rows, err := h.Inventory.Seats(ctx)
	if err != nil {
		return err
	}
	if c.QueryParam("format") == "flat" {
		return c.JSON(http.StatusOK, inventory.Flatten(rows))
	}
	return c.JSON(http.StatusOK, rows)
}

// BookedPlaceRatio returns the number of reserved seats for each day of the
// season window.
func (h *PlaceHandler) BookedPlaceRatio(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	counts, err := h.Inventory.OccupancyHorizon(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}
