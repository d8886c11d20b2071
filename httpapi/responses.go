package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-inbox/core"
)

type pageResponse struct {
	CurrentPage int            `json:"current_page"`
	Data        []core.Message `json:"data"`
	PerPage     int            `json:"per_page"`
	Total       int            `json:"total"`
	LastPage    int            `json:"last_page"`
}

func newPageResponse(page core.MessagePage) pageResponse {
	items := page.Items
	if items == nil {
		items = []core.Message{}
	}
	return pageResponse{
		CurrentPage: page.Page,
		Data:        items,
		PerPage:     page.PerPage,
		Total:       page.Total,
		LastPage:    page.LastPage,
	}
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (h *handler) writeError(c *gin.Context, err error) {
	switch core.ErrorKindOf(err) {
	case core.ErrorKindValidation:
		fields := core.ValidationFields(err)
		if fields == nil {
			fields = map[string][]string{}
		}
		c.JSON(http.StatusUnprocessableEntity, validationResponse{
			Message: "The given data was invalid.",
			Errors:  fields,
		})
	case core.ErrorKindNotFound:
		c.JSON(http.StatusNotFound, errorResponse{
			Message: "Record not found",
			Error:   http.StatusText(http.StatusNotFound),
		})
	default:
		fields := map[string]any{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		}
		if rich := core.MapError(err); rich != nil {
			fields["text_code"] = rich.TextCode
		}
		core.LogFields(c.Request.Context(), h.logger, "error", "message query failed", fields)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Message: "An error occurred, contact support",
			Error:   http.StatusText(http.StatusInternalServerError),
		})
	}
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, errorResponse{
		Message: "Route is not configured",
		Error:   http.StatusText(http.StatusServiceUnavailable),
	})
}
