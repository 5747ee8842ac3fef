package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/services"
)

// ListAccounts godoc
// @ID          listAccounts
// @Summary     List tracked accounts
// @Description Returns each tracked account with its cursor, in-flight flag, last cycle result and ledger counts.
// @Tags        Accounts
// @Produce     json
// @Success     200  {object}  handlers.ListAccountsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /accounts [get]
func (h *Handlers) ListAccounts(c *gin.Context) {
	views, err := h.accountSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	resp := ListAccountsResponse{Accounts: make([]AccountResponse, 0, len(views))}
	for _, v := range views {
		a := AccountResponse{
			Account:  v.Account,
			Cursor:   v.Cursor,
			InFlight: v.InFlight,
			Anchors:  v.Anchors,
		}
		if v.Last != nil {
			last := toCycleResultResponse(*v.Last)
			a.Last = &last
		}
		resp.Accounts = append(resp.Accounts, a)
	}
	ok(c, http.StatusOK, resp)
}

// TriggerCycle godoc
// @ID          triggerCycle
// @Summary     Run one cycle now
// @Description Runs a full fetch, publish, anchor and patch cycle for the account and waits for it. A failed cycle returns 502 with the result body.
// @Tags        Accounts
// @Produce     json
// @Param       account  path  string  true  "Tracked account"  example(alice)
// @Success     200  {object}  handlers.CycleResultResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown account"
// @Failure     409  {object}  handlers.ErrorResponse  "Cycle already in flight"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.CycleResultResponse  "Cycle failed"
// @Router      /accounts/{account}/cycles [post]
func (h *Handlers) TriggerCycle(c *gin.Context) {
	account := c.Param("account")

	res, err := h.accountSvc.Trigger(c.Request.Context(), account)
	switch {
	case errors.Is(err, services.ErrUnknownAccount):
		fail(c, http.StatusNotFound, ErrCodeUnknownAccount, fmt.Sprintf("account %q is not tracked", account))
		return
	case errors.Is(err, services.ErrAccountBusy):
		fail(c, http.StatusConflict, ErrCodeCycleInFlight, fmt.Sprintf("a cycle for %q is already running", account))
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	status := http.StatusOK
	if res.State == domain.StateFailed {
		status = http.StatusBadGateway
	}
	ok(c, status, toCycleResultResponse(res))
}
