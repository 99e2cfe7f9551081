package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
)

// HandleReload godoc
// @Summary      Reload the store
// @Description  Writes pending changes and re-reads the backend.
// @Tags         admin
// @Produce      json
// @Success      200  {object}  service.Stats
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /admin/reload [post]
// @Security     BearerAuth
func (h *ShopHandler) HandleReload(ctx *gin.Context) {
	if err := h.svc.Reload(ctx.Request.Context()); err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleReload -> h.svc.Reload -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, h.svc.Stats())
}

// HandleStats godoc
// @Summary      Store statistics
// @Tags         admin
// @Produce      json
// @Success      200  {object}  service.Stats
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Router       /admin/stats [get]
// @Security     BearerAuth
func (h *ShopHandler) HandleStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.svc.Stats())
}

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         healthcheck
// @Produce      json
// @Success      200  {object}  response.Healthcheck
// @Router       / [get]
func (h *ShopHandler) HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.Healthcheck{
		Status:  "ok",
		Backend: h.svc.Stats().Backend,
	})
}
