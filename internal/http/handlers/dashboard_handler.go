package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bodytemp-bot/internal/domain"
	"github.com/tbourn/bodytemp-bot/internal/export"
	"github.com/tbourn/bodytemp-bot/internal/services"
	"github.com/tbourn/bodytemp-bot/internal/utils"
)

// Pagination is the pagination metadata for list endpoints.
type Pagination struct {
	Page       int   `json:"page"        example:"1"`
	PageSize   int   `json:"page_size"   example:"20"`
	Total      int64 `json:"total"       example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
	HasNext    bool  `json:"has_next"    example:"true"`
}

// Reading is one reading as shown on the dashboard. The platform user id is
// not part of the response.
type Reading struct {
	Datetime    string  `json:"datetime"    example:"2024-05-01T08:30:00"`
	Temperature float64 `json:"temperature" example:"36.5"`
}

// ListReadingsResponse wraps a page of readings.
type ListReadingsResponse struct {
	AnonymizedName string     `json:"anonymized_name"`
	Readings       []Reading  `json:"readings"`
	Pagination     Pagination `json:"pagination"`
}

// clampPagination reads page and page_size with defaults 1 and 20, capping
// page_size at 100.
func clampPagination(c *gin.Context) (int, int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), 20),
		20, 100,
	)
}

// ListReadings godoc
// @ID          listReadings
// @Summary     List readings for a dashboard link
// @Description Returns readings behind an anonymized name, newest first.
// @Tags        Dashboard
// @Produce     json
//
// @Param       anon           path    string  true  "Anonymized name"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListReadingsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Unknown dashboard"
// @Failure     409  {object} handlers.ErrorResponse "Anonymized name shared by several senders"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/dashboard/{anon}/readings [get]
func (h *Handlers) ListReadings(c *gin.Context) {
	ctx := c.Request.Context()
	anon := c.Param("anon")
	page, pageSize := clampPagination(c)

	count, latest, err := h.dashboard.Stats(ctx, anon)
	if failUnresolved(c, err) {
		return
	}
	if err == nil {
		etag := fmt.Sprintf(`W/"readings:%s:%d:%s:%d:%d"`, anon, count, latest, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.dashboard.ListPage(ctx, anon, page, pageSize)
	if failUnresolved(c, err) {
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListReadingsResponse{
		AnonymizedName: anon,
		Readings:       toReadings(items),
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ExportReadings godoc
// @ID          exportReadings
// @Summary     Download readings as a workbook
// @Tags        Dashboard
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//
// @Param       anon  path  string  true  "Anonymized name"
//
// @Success     200  {file}   file
// @Failure     404  {object} handlers.ErrorResponse "Unknown dashboard"
// @Failure     409  {object} handlers.ErrorResponse "Anonymized name shared by several senders"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/dashboard/{anon}/readings.xlsx [get]
func (h *Handlers) ExportReadings(c *gin.Context) {
	anon := c.Param("anon")

	rows, err := h.dashboard.Export(c.Request.Context(), anon)
	if failUnresolved(c, err) {
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReadings(&buf, anon, rows); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="readings-%s.xlsx"`, anon))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func toReadings(items []domain.Temperature) []Reading {
	out := make([]Reading, 0, len(items))
	for _, t := range items {
		out = append(out, Reading{Datetime: t.Datetime, Temperature: t.Temperature})
	}
	return out
}

// failUnresolved answers 404 or 409 when anon did not resolve to one sender.
func failUnresolved(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrDashboardNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "dashboard not found")
	case errors.Is(err, services.ErrDashboardAmbiguous):
		fail(c, http.StatusConflict, ErrCodeAmbiguous, "dashboard name is shared by several senders")
	default:
		return false
	}
	return true
}
