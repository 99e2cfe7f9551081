package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	v1 "github.com/vietanh2810/shopstore/internal/api/handler/v1"
	"github.com/vietanh2810/shopstore/internal/api/middleware"
	"github.com/vietanh2810/shopstore/internal/config"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

func NewServer(conf *config.AppConfig, shops v1.ShopService, hub *v1.EventHub) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()
	s.MountHandlers(v1.NewShopHandler(shops), hub)

	return s
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(shopHandler *v1.ShopHandler, hub *v1.EventHub) {
	const basePath = "/api/v1"

	authenticator := middleware.NewAuthenticator(s.Config.API.JWTSigningKey)

	public := s.Router.Group(basePath)
	{
		public.GET("/shops/open", shopHandler.HandleGetOpenShops)
		public.GET("/shops/:ownerID", shopHandler.HandleGetShop)
		public.GET("/shops/:ownerID/tabs", shopHandler.HandleGetTabs)
		public.GET("/shops/:ownerID/listings", shopHandler.HandleGetShopListings)
		public.GET("/listings/:listingID", shopHandler.HandleGetListing)
		if hub != nil {
			public.GET("/shops/:ownerID/events", hub.HandleEvents)
		}
	}

	shops := s.Router.Group(basePath, authenticator.VerifyJWT())
	{
		shops.PUT("/shops/:ownerID/nick", shopHandler.HandleSetNick)
		shops.PUT("/shops/:ownerID/name", shopHandler.HandleRenameShop)
		shops.PUT("/shops/:ownerID/icon", shopHandler.HandleSetIcon)
		shops.PUT("/shops/:ownerID/open", shopHandler.HandleSetOpen)
		shops.POST("/shops/:ownerID/tabs", shopHandler.HandleCreateTab)
		shops.DELETE("/shops/:ownerID/tabs/:tab", shopHandler.HandleRemoveTab)
		shops.POST("/shops/:ownerID/listings", shopHandler.HandleCreateListing)
		shops.DELETE("/shops/:ownerID/listings", shopHandler.HandlePurgeShopListings)
	}

	listings := s.Router.Group(basePath, authenticator.VerifyJWT())
	{
		listings.PUT("/listings/:listingID", shopHandler.HandleUpdateListing)
		listings.DELETE("/listings/:listingID", shopHandler.HandleRemoveListing)
		listings.POST("/listings/:listingID/decrease", shopHandler.HandleDecreaseStock)
		listings.POST("/listings/:listingID/increase", shopHandler.HandleIncreaseStock)
		listings.PUT("/listings/:listingID/price", shopHandler.HandleUpdatePrice)
	}

	admin := s.Router.Group(basePath+"/admin", authenticator.VerifyJWT(), middleware.RequireAdmin())
	{
		admin.POST("/reload", shopHandler.HandleReload)
		admin.GET("/stats", shopHandler.HandleStats)
	}

	s.Router.GET("/", shopHandler.HandleHealthcheck)
}
