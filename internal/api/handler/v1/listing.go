package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/request"
	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
	"github.com/vietanh2810/shopstore/internal/domain"
)

// HandleGetListing godoc
// @Summary      Get a listing
// @Tags         listings
// @Produce      json
// @Param        listingID  path      int  true  "Listing ID"
// @Success      200        {object}  domain.Listing
// @Failure      400        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Router       /listings/{listingID} [get]
func (h *ShopHandler) HandleGetListing(ctx *gin.Context) {
	id, respErr := listingParam(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	l, ok := h.svc.GetListing(id)
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("listing", "listingID", id))
		return
	}

	ctx.JSON(http.StatusOK, l)
}

// HandleUpdateListing godoc
// @Summary      Update a listing
// @Description  Overwrites every mutable field. The owner cannot be changed.
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        listingID  path      int                     true  "Listing ID"
// @Param        request    body      request.ListingRequest  true  "request body"
// @Success      200        {object}  domain.Listing
// @Failure      400        {object}  response.Err
// @Failure      401        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Failure      422        {object}  response.Err
// @Failure      500        {object}  response.Err
// @Router       /listings/{listingID} [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleUpdateListing(ctx *gin.Context) {
	current, respErr := h.authorizedListing(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ListingRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	l := req.Draft(current.OwnerID).Listing()
	l.ID = current.ID
	updated, ok, err := h.svc.UpdateListing(ctx.Request.Context(), l)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleUpdateListing -> h.svc.UpdateListing", err))
		return
	}
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("listing", "listingID", current.ID))
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// HandleRemoveListing godoc
// @Summary      Remove a listing
// @Tags         listings
// @Produce      json
// @Param        listingID  path      int  true  "Listing ID"
// @Success      200        {object}  response.Removed
// @Failure      400        {object}  response.Err
// @Failure      401        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Failure      500        {object}  response.Err
// @Router       /listings/{listingID} [delete]
// @Security     BearerAuth
func (h *ShopHandler) HandleRemoveListing(ctx *gin.Context) {
	current, respErr := h.authorizedListing(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	removed, err := h.svc.RemoveListing(ctx.Request.Context(), current.ID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleRemoveListing -> h.svc.RemoveListing", err))
		return
	}

	ctx.JSON(http.StatusOK, response.Removed{Removed: removed})
}

// HandleDecreaseStock godoc
// @Summary      Decrease listing stock
// @Description  Stock stops at zero; the listing is kept.
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        listingID  path      int                    true  "Listing ID"
// @Param        request    body      request.AmountRequest  true  "request body"
// @Success      200        {object}  domain.Listing
// @Failure      400        {object}  response.Err
// @Failure      401        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Failure      500        {object}  response.Err
// @Router       /listings/{listingID}/decrease [post]
// @Security     BearerAuth
func (h *ShopHandler) HandleDecreaseStock(ctx *gin.Context) {
	h.handleStock(ctx, h.svc.DecreaseStock, "HandleDecreaseStock -> h.svc.DecreaseStock")
}

// HandleIncreaseStock godoc
// @Summary      Increase listing stock
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        listingID  path      int                    true  "Listing ID"
// @Param        request    body      request.AmountRequest  true  "request body"
// @Success      200        {object}  domain.Listing
// @Failure      400        {object}  response.Err
// @Failure      401        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Failure      500        {object}  response.Err
// @Router       /listings/{listingID}/increase [post]
// @Security     BearerAuth
func (h *ShopHandler) HandleIncreaseStock(ctx *gin.Context) {
	h.handleStock(ctx, h.svc.IncreaseStock, "HandleIncreaseStock -> h.svc.IncreaseStock")
}

type stockFunc func(ctx context.Context, id int64, amount int) (domain.Listing, bool, error)

func (h *ShopHandler) handleStock(ctx *gin.Context, apply stockFunc, op string) {
	current, respErr := h.authorizedListing(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.AmountRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	l, ok, err := apply(ctx.Request.Context(), current.ID, req.Amount)
	if err != nil {
		response.RenderErr(ctx, serviceErr(op, err))
		return
	}
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("listing", "listingID", current.ID))
		return
	}

	ctx.JSON(http.StatusOK, l)
}

// HandleUpdatePrice godoc
// @Summary      Update listing prices
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        listingID  path      int                   true  "Listing ID"
// @Param        request    body      request.PriceRequest  true  "request body"
// @Success      200        {object}  domain.Listing
// @Failure      400        {object}  response.Err
// @Failure      401        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Failure      500        {object}  response.Err
// @Router       /listings/{listingID}/price [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleUpdatePrice(ctx *gin.Context) {
	current, respErr := h.authorizedListing(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.PriceRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	l, ok, err := h.svc.UpdatePrice(ctx.Request.Context(), current.ID, req.BuyPrice, req.SellPrice)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleUpdatePrice -> h.svc.UpdatePrice", err))
		return
	}
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("listing", "listingID", current.ID))
		return
	}

	ctx.JSON(http.StatusOK, l)
}

func listingParam(ctx *gin.Context) (int64, *response.Err) {
	id, err := strconv.ParseInt(ctx.Param("listingID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, response.ErrBadRequest(fmt.Errorf("invalid listing ID %q", ctx.Param("listingID")))
	}
	return id, nil
}

// authorizedListing loads the listing named by the path and checks that the
// caller may modify it. House listings can only be changed by admins.
func (h *ShopHandler) authorizedListing(ctx *gin.Context) (domain.Listing, *response.Err) {
	id, respErr := listingParam(ctx)
	if respErr != nil {
		return domain.Listing{}, respErr
	}

	l, ok := h.svc.GetListing(id)
	if !ok {
		return domain.Listing{}, response.ErrNotFound("listing", "listingID", id)
	}
	if respErr := authorize(ctx, l.OwnerID); respErr != nil {
		return domain.Listing{}, respErr
	}
	return l, nil
}
