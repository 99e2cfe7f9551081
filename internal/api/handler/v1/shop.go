package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/request"
	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
	"github.com/vietanh2810/shopstore/internal/api/middleware"
	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/service"
)

type ShopService interface {
	AddListing(ctx context.Context, d domain.ListingDraft) (domain.Listing, error)
	AddOrUpdateListing(ctx context.Context, d domain.ListingDraft) (domain.Listing, bool, error)
	RemoveListing(ctx context.Context, id int64) (bool, error)
	PurgeOwnerListings(ctx context.Context, owner uuid.UUID) (int, error)
	UpdateListing(ctx context.Context, l domain.Listing) (domain.Listing, bool, error)
	DecreaseStock(ctx context.Context, id int64, amount int) (domain.Listing, bool, error)
	IncreaseStock(ctx context.Context, id int64, amount int) (domain.Listing, bool, error)
	UpdatePrice(ctx context.Context, id int64, buy, sell decimal.Decimal) (domain.Listing, bool, error)
	GetListing(id int64) (domain.Listing, bool)
	ListingsByOwner(owner uuid.UUID) []domain.Listing
	ListingsByTab(owner uuid.UUID, tab string) []domain.Listing

	SetOwnerNick(ctx context.Context, owner uuid.UUID, nick string) (domain.Owner, error)
	RenameShop(ctx context.Context, owner uuid.UUID, name string) (domain.Owner, error)
	SetIcon(ctx context.Context, owner uuid.UUID, icon string) (domain.Owner, error)
	SetShopOpen(ctx context.Context, owner uuid.UUID, open bool) (domain.Owner, error)
	Owner(owner uuid.UUID) (domain.Owner, bool)
	OpenShops() []domain.Owner

	CreateTab(ctx context.Context, owner uuid.UUID, name string) error
	RemoveTab(ctx context.Context, owner uuid.UUID, name string) (bool, error)
	AllTabs(owner uuid.UUID) []string

	Reload(ctx context.Context) error
	Stats() service.Stats
}

type ShopHandler struct {
	svc ShopService
}

func NewShopHandler(svc ShopService) *ShopHandler {
	return &ShopHandler{
		svc: svc,
	}
}

// HandleGetOpenShops godoc
// @Summary      List open shops
// @Tags         shops
// @Produce      json
// @Success      200  {array}   response.ShopSummary
// @Router       /shops/open [get]
func (h *ShopHandler) HandleGetOpenShops(ctx *gin.Context) {
	open := h.svc.OpenShops()
	shops := make([]response.ShopSummary, 0, len(open))
	for _, o := range open {
		shops = append(shops, response.NewShopSummary(o))
	}
	ctx.JSON(http.StatusOK, shops)
}

// HandleGetShop godoc
// @Summary      Get a shop
// @Tags         shops
// @Produce      json
// @Param        ownerID  path      string  true  "Owner ID"
// @Success      200      {object}  domain.Owner
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Router       /shops/{ownerID} [get]
func (h *ShopHandler) HandleGetShop(ctx *gin.Context) {
	owner, respErr := ownerParam(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	o, ok := h.svc.Owner(owner)
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("shop", "ownerID", owner))
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// HandleSetNick godoc
// @Summary      Set the owner's nick
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                  true  "Owner ID"
// @Param        request  body      request.SetNickRequest  true  "request body"
// @Success      200      {object}  domain.Owner
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/nick [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleSetNick(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SetNickRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	o, err := h.svc.SetOwnerNick(ctx.Request.Context(), owner, req.Nick)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleSetNick -> h.svc.SetOwnerNick", err))
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// HandleRenameShop godoc
// @Summary      Rename a shop
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                     true  "Owner ID"
// @Param        request  body      request.RenameShopRequest  true  "request body"
// @Success      200      {object}  domain.Owner
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/name [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleRenameShop(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.RenameShopRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	o, err := h.svc.RenameShop(ctx.Request.Context(), owner, req.Name)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleRenameShop -> h.svc.RenameShop", err))
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// HandleSetIcon godoc
// @Summary      Set the shop icon
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                  true  "Owner ID"
// @Param        request  body      request.SetIconRequest  true  "request body"
// @Success      200      {object}  domain.Owner
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/icon [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleSetIcon(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SetIconRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	o, err := h.svc.SetIcon(ctx.Request.Context(), owner, req.Icon)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleSetIcon -> h.svc.SetIcon", err))
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// HandleSetOpen godoc
// @Summary      Open or close a shop
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                  true  "Owner ID"
// @Param        request  body      request.SetOpenRequest  true  "request body"
// @Success      200      {object}  domain.Owner
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/open [put]
// @Security     BearerAuth
func (h *ShopHandler) HandleSetOpen(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SetOpenRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	o, err := h.svc.SetShopOpen(ctx.Request.Context(), owner, *req.Open)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleSetOpen -> h.svc.SetShopOpen", err))
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// HandleGetTabs godoc
// @Summary      List a shop's tabs
// @Tags         tabs
// @Produce      json
// @Param        ownerID  path      string  true  "Owner ID"
// @Success      200      {object}  response.Tabs
// @Failure      400      {object}  response.Err
// @Router       /shops/{ownerID}/tabs [get]
func (h *ShopHandler) HandleGetTabs(ctx *gin.Context) {
	owner, respErr := ownerParam(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, response.Tabs{
		OwnerID: owner.String(),
		Tabs:    h.svc.AllTabs(owner),
		Max:     domain.MaxTabs,
	})
}

// HandleCreateTab godoc
// @Summary      Create a tab
// @Description  Creating an existing tab is a no-op. A shop has at most 7 tabs.
// @Tags         tabs
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                    true  "Owner ID"
// @Param        request  body      request.CreateTabRequest  true  "request body"
// @Success      201      {object}  response.Tabs
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/tabs [post]
// @Security     BearerAuth
func (h *ShopHandler) HandleCreateTab(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateTabRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.CreateTab(ctx.Request.Context(), owner, req.Name); err != nil {
		response.RenderErr(ctx, serviceErr("HandleCreateTab -> h.svc.CreateTab", err))
		return
	}

	ctx.JSON(http.StatusCreated, response.Tabs{
		OwnerID: owner.String(),
		Tabs:    h.svc.AllTabs(owner),
		Max:     domain.MaxTabs,
	})
}

// HandleRemoveTab godoc
// @Summary      Remove a tab
// @Description  Removes the tab and every listing filed under it.
// @Tags         tabs
// @Produce      json
// @Param        ownerID  path      string  true  "Owner ID"
// @Param        tab      path      string  true  "Tab name"
// @Success      200      {object}  response.Removed
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/tabs/{tab} [delete]
// @Security     BearerAuth
func (h *ShopHandler) HandleRemoveTab(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tab := ctx.Param("tab")
	removed, err := h.svc.RemoveTab(ctx.Request.Context(), owner, tab)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleRemoveTab -> h.svc.RemoveTab", err))
		return
	}
	if !removed {
		response.RenderErr(ctx, response.ErrNotFound("tab", "name", tab))
		return
	}

	ctx.JSON(http.StatusOK, response.Removed{Removed: true})
}

// HandleGetShopListings godoc
// @Summary      List a shop's listings
// @Description  With tab set only that tab is returned; tab= (empty) returns uncategorized listings.
// @Tags         listings
// @Produce      json
// @Param        ownerID  path      string  true   "Owner ID"
// @Param        tab      query     string  false  "Tab name"
// @Success      200      {array}   domain.Listing
// @Failure      400      {object}  response.Err
// @Router       /shops/{ownerID}/listings [get]
func (h *ShopHandler) HandleGetShopListings(ctx *gin.Context) {
	owner, respErr := ownerParam(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var listings []domain.Listing
	if tab, ok := ctx.GetQuery("tab"); ok {
		listings = h.svc.ListingsByTab(owner, tab)
	} else {
		listings = h.svc.ListingsByOwner(owner)
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	ctx.JSON(http.StatusOK, listings)
}

// HandleCreateListing godoc
// @Summary      Create a listing
// @Description  With stack=true the listing is merged into a matching one when possible.
// @Tags         listings
// @Accept       json
// @Produce      json
// @Param        ownerID  path      string                  true   "Owner ID"
// @Param        stack    query     bool                    false  "Merge into a matching listing"
// @Param        request  body      request.ListingRequest  true   "request body"
// @Success      201      {object}  response.StackedListing
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/listings [post]
// @Security     BearerAuth
func (h *ShopHandler) HandleCreateListing(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ListingRequest
	if respErr := bindAndValidate(ctx, &req); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	stack, err := strconv.ParseBool(ctx.DefaultQuery("stack", "false"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid stack flag: %w", err)))
		return
	}

	var result response.StackedListing
	if stack {
		result.Listing, result.Merged, err = h.svc.AddOrUpdateListing(ctx.Request.Context(), req.Draft(owner))
	} else {
		result.Listing, err = h.svc.AddListing(ctx.Request.Context(), req.Draft(owner))
	}
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandleCreateListing -> h.svc.AddListing", err))
		return
	}

	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

// HandlePurgeShopListings godoc
// @Summary      Remove every listing of a shop
// @Tags         listings
// @Produce      json
// @Param        ownerID  path      string  true  "Owner ID"
// @Success      200      {object}  response.Purged
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /shops/{ownerID}/listings [delete]
// @Security     BearerAuth
func (h *ShopHandler) HandlePurgeShopListings(ctx *gin.Context) {
	owner, respErr := authorizedOwner(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	n, err := h.svc.PurgeOwnerListings(ctx.Request.Context(), owner)
	if err != nil {
		response.RenderErr(ctx, serviceErr("HandlePurgeShopListings -> h.svc.PurgeOwnerListings", err))
		return
	}

	ctx.JSON(http.StatusOK, response.Purged{Removed: n})
}

func ownerParam(ctx *gin.Context) (uuid.UUID, *response.Err) {
	owner, err := uuid.Parse(ctx.Param("ownerID"))
	if err != nil {
		return uuid.Nil, response.ErrBadRequest(fmt.Errorf("invalid owner ID: %w", err))
	}
	return owner, nil
}

// authorizedOwner parses the ownerID path parameter and checks that the
// caller's token is for that owner or an admin.
func authorizedOwner(ctx *gin.Context) (uuid.UUID, *response.Err) {
	owner, respErr := ownerParam(ctx)
	if respErr != nil {
		return uuid.Nil, respErr
	}
	if respErr := authorize(ctx, owner); respErr != nil {
		return uuid.Nil, respErr
	}
	return owner, nil
}

func authorize(ctx *gin.Context, owner uuid.UUID) *response.Err {
	claims, ok := middleware.Claims(ctx)
	if !ok {
		return response.ErrUnauthorized(errors.New("missing token claims"))
	}
	if claims.IsAdmin() || (owner != uuid.Nil && claims.Subject == owner.String()) {
		return nil
	}
	return response.ErrPermissionDenied(fmt.Errorf("token subject %q may not modify shop %v", claims.Subject, owner))
}

type validatable interface {
	Validate() error
}

func bindAndValidate(ctx *gin.Context, req validatable) *response.Err {
	if err := ctx.ShouldBindJSON(req); err != nil {
		return response.ErrBadRequest(err)
	}
	if err := req.Validate(); err != nil {
		return response.ErrBadRequest(err)
	}
	return nil
}

// serviceErr maps a store error to its HTTP response.
func serviceErr(op string, err error) *response.Err {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidListing):
		return response.ErrBadRequest(err)
	case errors.Is(err, service.ErrTabLimitReached),
		errors.Is(err, service.ErrTabNotFound):
		return response.ErrUnprocessable(err)
	default:
		return response.ErrInternalServerError(fmt.Errorf("%s -> %w", op, err))
	}
}
