package sources

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/expression"
	"github.com/pevans/booksource/rule"
)

// SourceAPIServer represents the HTTP API server for conversion and the
// rule library.
type SourceAPIServer struct {
	store      *SourceStore
	dispatcher *converter.Dispatcher
	defaults   func() converter.Options
}

// NewSourceAPIServer creates a new API server. Conversions use the
// dispatcher's options unless a request overrides them.
func NewSourceAPIServer(store *SourceStore, dispatcher *converter.Dispatcher) *SourceAPIServer {
	return &SourceAPIServer{
		store:      store,
		dispatcher: dispatcher,
	}
}

// SetDefaults makes every request read its conversion options from fn, so
// edited defaults apply without a restart.
func (s *SourceAPIServer) SetDefaults(fn func() converter.Options) {
	s.defaults = fn
}

// SetupRouter configures the Gin router with all API routes.
func (s *SourceAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(CORS())
	s.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// CORS allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// RegisterRoutes mounts the handlers on an existing group so other
// packages can share one engine.
func (s *SourceAPIServer) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/convert", s.HandleConvert)
	api.POST("/detect", s.HandleDetect)
	api.POST("/validate", s.HandleValidate)
	api.POST("/expressions/validate", s.HandleValidateExpression)
	api.POST("/expressions/parse", s.HandleParseExpression)
	api.GET("/schema", s.HandleSchema)

	api.GET("/sources", s.HandleListSources)
	api.POST("/sources", s.HandleImportSources)
	api.GET("/sources/:id", s.HandleGetSource)
	api.PUT("/sources/:id", s.HandleUpdateSource)
	api.DELETE("/sources/:id", s.HandleDeleteSource)
	api.GET("/sources/:id/export", s.HandleExportSource)
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []Source `json:"sources"`
	Total   int      `json:"total"`
}

// ImportSourcesResponse represents the response for POST /api/v1/sources.
type ImportSourcesResponse struct {
	Results  []ImportResult `json:"results"`
	Imported int            `json:"imported"`
	Failed   int            `json:"failed"`
}

// UpdateSourceRequest represents the request for PUT
// /api/v1/sources/{id}. Rule may be in any format.
type UpdateSourceRequest struct {
	Name    *string `json:"name,omitempty"`
	Group   *string `json:"group,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	Rule    any     `json:"rule,omitempty"`
}

// ExpressionRequest is the body of the expression endpoints.
type ExpressionRequest struct {
	Expression string `json:"expression"`
}

// ParseExpressionResponse carries the tree and its canonical text.
type ParseExpressionResponse struct {
	AST        expression.Node `json:"ast"`
	Serialized string          `json:"serialized"`
}

// ValidateResponse is the result of POST /api/v1/validate.
type ValidateResponse struct {
	Format rule.Format                `json:"format"`
	Result converter.ValidationResult `json:"result"`
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

// handleError maps domain errors to HTTP responses.
func (s *SourceAPIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSourceNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, ErrDuplicateSource):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, ErrInvalidRule),
		errors.Is(err, converter.ErrMissingIdentity),
		errors.Is(err, converter.ErrNotObject):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	case errors.Is(err, converter.ErrUnknownFormat),
		errors.Is(err, rule.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, errorResponse("unsupported_format", err.Error()))
	default:
		var convErr *converter.ConversionError
		if errors.As(err, &convErr) {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// readDocuments decodes the request body as one rule object or an array.
func readDocuments(c *gin.Context) ([]any, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Failed to read request body"))
		return nil, false
	}
	docs, err := converter.DecodeDocuments(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return nil, false
	}
	return docs, true
}

// readDocument decodes the request body as exactly one rule object.
func readDocument(c *gin.Context) (any, bool) {
	docs, ok := readDocuments(c)
	if !ok {
		return nil, false
	}
	if len(docs) != 1 {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Expected a single rule object"))
		return nil, false
	}
	return docs[0], true
}

// targetFormat reads the ?to= parameter, defaulting to universal.
func targetFormat(c *gin.Context) (rule.Format, bool) {
	target, err := rule.ParseFormat(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("unsupported_format", err.Error()))
		return "", false
	}
	return target, true
}

// requestDispatcher applies ?preserve= and ?strict= overrides.
func (s *SourceAPIServer) requestDispatcher(c *gin.Context) *converter.Dispatcher {
	opts := s.dispatcher.Options()
	overridden := false
	if s.defaults != nil {
		opts = s.defaults()
		overridden = true
	}
	if v := c.Query("preserve"); v != "" {
		opts.PreserveOriginal = v == "true"
		overridden = true
	}
	if v := c.Query("strict"); v != "" {
		opts.Strict = v == "true"
		overridden = true
	}
	if !overridden {
		return s.dispatcher
	}
	return converter.NewDispatcher(opts)
}

// HandleConvert handles POST /api/v1/convert. A single object answers with
// the converted rule; an array answers with per-item batch results.
func (s *SourceAPIServer) HandleConvert(c *gin.Context) {
	target, ok := targetFormat(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Failed to read request body"))
		return
	}
	docs, err := converter.DecodeDocuments(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	d := s.requestDispatcher(c)
	if len(body) > 0 && firstNonSpace(body) == '[' {
		c.JSON(http.StatusOK, gin.H{"results": d.ConvertBatch(docs, target)})
		return
	}

	out, err := d.Convert(docs[0], target)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func firstNonSpace(b []byte) byte {
	for _, ch := range b {
		switch ch {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return ch
	}
	return 0
}

// HandleDetect handles POST /api/v1/detect.
func (s *SourceAPIServer) HandleDetect(c *gin.Context) {
	doc, ok := readDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"format": s.dispatcher.Detect(doc)})
}

// HandleValidate handles POST /api/v1/validate.
func (s *SourceAPIServer) HandleValidate(c *gin.Context) {
	doc, ok := readDocument(c)
	if !ok {
		return
	}

	format, result, err := s.dispatcher.Validate(doc)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidateResponse{Format: format, Result: result})
}

// HandleValidateExpression handles POST /api/v1/expressions/validate.
func (s *SourceAPIServer) HandleValidateExpression(c *gin.Context) {
	var req ExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	c.JSON(http.StatusOK, expression.NewValidator().Validate(req.Expression))
}

// HandleParseExpression handles POST /api/v1/expressions/parse.
func (s *SourceAPIServer) HandleParseExpression(c *gin.Context) {
	var req ExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	node, err := expression.Parse(req.Expression)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}
	c.JSON(http.StatusOK, ParseExpressionResponse{
		AST:        node,
		Serialized: expression.Serialize(node),
	})
}

// HandleSchema handles GET /api/v1/schema.
func (s *SourceAPIServer) HandleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, rule.Schema())
}

// HandleListSources handles GET /api/v1/sources.
func (s *SourceAPIServer) HandleListSources(c *gin.Context) {
	// Build filter from query parameters
	filter := SourceFilter{}

	if formatParam := c.Query("format"); formatParam != "" {
		format, err := rule.ParseFormat(formatParam)
		if err != nil {
			s.handleError(c, err)
			return
		}
		filter.Format = &format
	}

	if typeParam := c.Query("content_type"); typeParam != "" {
		contentType := rule.ContentType(typeParam)
		if !contentType.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", "Unknown content_type"))
			return
		}
		filter.ContentType = &contentType
	}

	if groupParam := c.Query("group"); groupParam != "" {
		filter.Group = &groupParam
	}

	if enabledParam := c.Query("enabled"); enabledParam != "" {
		enabled := enabledParam == "true"
		filter.Enabled = &enabled
	}

	sources, err := s.store.ListSources(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if sources == nil {
		sources = []Source{}
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: sources,
		Total:   len(sources),
	})
}

// HandleImportSources handles POST /api/v1/sources. The body is one rule
// or an array of rules in any format.
func (s *SourceAPIServer) HandleImportSources(c *gin.Context) {
	docs, ok := readDocuments(c)
	if !ok {
		return
	}

	results := s.store.Import(s.requestDispatcher(c), docs)
	resp := ImportSourcesResponse{Results: results}
	for _, r := range results {
		if r.Error == "" {
			resp.Imported++
		} else {
			resp.Failed++
		}
	}

	status := http.StatusCreated
	if resp.Imported == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}

func parseSourceID(c *gin.Context) (uuid.UUID, bool) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return uuid.Nil, false
	}
	return sourceID, true
}

// HandleGetSource handles GET /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleGetSource(c *gin.Context) {
	sourceID, ok := parseSourceID(c)
	if !ok {
		return
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleUpdateSource handles PUT /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleUpdateSource(c *gin.Context) {
	sourceID, ok := parseSourceID(c)
	if !ok {
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	update := SourceUpdate{
		Name:  req.Name,
		Group: req.Group,
	}

	if req.Rule != nil {
		r, err := s.requestDispatcher(c).ToUniversal(req.Rule)
		if err != nil {
			s.handleError(c, err)
			return
		}
		update.Rule = r
	}

	// Handle enabled -- convert boolean to enabled_at timestamp
	if req.Enabled != nil {
		if *req.Enabled {
			now := time.Now()
			update.EnabledAt = &now
		} else {
			update.ClearEnabledAt = true
		}
	}

	if err := s.store.UpdateSource(sourceID, update); err != nil {
		s.handleError(c, err)
		return
	}

	source, err := s.store.GetSource(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleDeleteSource handles DELETE /api/v1/sources/{id}.
func (s *SourceAPIServer) HandleDeleteSource(c *gin.Context) {
	sourceID, ok := parseSourceID(c)
	if !ok {
		return
	}

	if err := s.store.DeleteSource(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleExportSource handles GET /api/v1/sources/{id}/export.
func (s *SourceAPIServer) HandleExportSource(c *gin.Context) {
	sourceID, ok := parseSourceID(c)
	if !ok {
		return
	}
	target, ok := targetFormat(c)
	if !ok {
		return
	}

	out, err := s.store.Export(s.dispatcher, sourceID, target)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
