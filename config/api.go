package config

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
)

// ConfigAPIServer represents the HTTP API server for configuration
// management.
type ConfigAPIServer struct {
	store *ConfigStore
}

// NewConfigAPIServer creates a new config API server.
func NewConfigAPIServer(store *ConfigStore) *ConfigAPIServer {
	return &ConfigAPIServer{
		store: store,
	}
}

// SetupRouter configures the Gin router with config API routes.
func (c *ConfigAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}

		ctx.Next()
	})

	c.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes mounts the config handlers on an existing group.
func (c *ConfigAPIServer) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/config", c.HandleGetConfig)
	api.PUT("/config", c.HandleUpdateConfig)
}

// UpdateConfigRequest is a partial update; absent fields keep their
// current value.
type UpdateConfigRequest struct {
	DefaultTarget    *string `json:"default_target,omitempty"`
	PreserveOriginal *bool   `json:"preserve_original,omitempty"`
	Strict           *bool   `json:"strict,omitempty"`
	JsoupTarget      *string `json:"jsoup_target,omitempty"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleGetConfig handles GET /api/v1/config.
func (c *ConfigAPIServer) HandleGetConfig(ctx *gin.Context) {
	config, err := c.store.GetConfig()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve configuration"))
		return
	}

	ctx.JSON(http.StatusOK, config)
}

// HandleUpdateConfig handles PUT /api/v1/config.
func (c *ConfigAPIServer) HandleUpdateConfig(ctx *gin.Context) {
	var req UpdateConfigRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	config, err := c.store.GetConfig()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve configuration"))
		return
	}

	if req.DefaultTarget != nil {
		target, err := rule.ParseFormat(*req.DefaultTarget)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("unsupported_format", err.Error()))
			return
		}
		config.DefaultTarget = target
	}
	if req.PreserveOriginal != nil {
		config.PreserveOriginal = *req.PreserveOriginal
	}
	if req.Strict != nil {
		config.Strict = *req.Strict
	}
	if req.JsoupTarget != nil {
		config.JsoupTarget = jsoup.Target(*req.JsoupTarget)
	}

	if err := config.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	if err := c.store.UpdateConfig(config); err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to update configuration"))
		return
	}

	ctx.JSON(http.StatusOK, config)
}
