package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tweet-anchoring/internal/services"
	"github.com/tbourn/tweet-anchoring/internal/utils"
)

var cyclePageBounds = utils.PageBounds{DefaultSize: 20, MaxSize: 100}

// ListCycles godoc
// @ID          listCycles
// @Summary     List cycle runs (paginated)
// @Description Returns journaled cycle runs, newest first. Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Cycles
// @Produce     json
// @Param       account        query   string  false "Restrict to one account"     example(alice)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListCyclesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Unknown account"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Failure     503  {object} handlers.ErrorResponse "Journal disabled"
// @Router      /cycles [get]
func (h *Handlers) ListCycles(c *gin.Context) {
	ctx := c.Request.Context()
	account := strings.TrimSpace(c.Query("account"))
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), cyclePageBounds)

	count, maxTS, err := h.cycleSvc.Stats(ctx, account)
	if err != nil {
		h.failCycles(c, account, err)
		return
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixMilli()
	}
	scope := account
	if scope == "" {
		scope = "*"
	}
	etag := fmt.Sprintf(`W/"cycles:%s:%d:%d:%d:%d"`, scope, count, ts, page, pageSize)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	items, total, err := h.cycleSvc.ListPage(ctx, account, page, pageSize)
	if err != nil {
		h.failCycles(c, account, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListCyclesResponse{
		Cycles: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

func (h *Handlers) failCycles(c *gin.Context, account string, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownAccount):
		fail(c, http.StatusNotFound, ErrCodeUnknownAccount, fmt.Sprintf("account %q is not tracked", account))
	case errors.Is(err, services.ErrJournalDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeJournalDisabled, "cycle history requires DB_PATH")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
	}
}
