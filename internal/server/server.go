package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/acquisition"
	"github.com/rezonia/cufe-expenses/internal/categorizer"
	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/processor"
	"github.com/rezonia/cufe-expenses/internal/session"
	"github.com/rezonia/cufe-expenses/internal/store"
)

// Config holds server configuration
type Config struct {
	Address            string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Debug              bool
	DefaultUserID      string
	AcquisitionTimeout time.Duration
	MaxRetries         int
	CaptchaAPIKey      string
	ExtractTimeout     time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config      *Config
	router      *gin.Engine
	pipeline    *processor.Pipeline
	repo        store.Repository
	acquirer    session.Acquirer
	categorizer session.Categorizer
	logger      zerolog.Logger
}

// Option configures the server dependencies
type Option func(*Server)

func WithPipeline(p *processor.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithRepository enables duplicate checks and the persistence endpoints.
func WithRepository(r store.Repository) Option {
	return func(s *Server) {
		s.repo = r
	}
}

// WithAcquirer enables the streamed acquisition endpoint.
func WithAcquirer(a session.Acquirer) Option {
	return func(s *Server) {
		s.acquirer = a
	}
}

func WithCategorizer(c session.Categorizer) Option {
	return func(s *Server) {
		s.categorizer = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new API server
func NewServer(config *Config, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: config,
		router: router,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = processor.NewPipeline(processor.WithLogger(s.logger))
	}
	if s.categorizer == nil {
		s.categorizer = categorizer.NewDefault(categorizer.WithLogger(s.logger))
	}
	if s.config.ExtractTimeout <= 0 {
		s.config.ExtractTimeout = 2 * time.Minute
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ExtractResponse{Success: false, Error: "method not allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices/extract", s.handleExtract)
		v1.POST("/invoices/acquire", s.handleAcquire)
		v1.POST("/invoices", s.handleSave)
		v1.GET("/saved/:id", s.handleGetInvoice)
		v1.GET("/saved/:id/expenses", s.handleListExpenses)

		v1.POST("/cufe/validate", s.handleValidate)
		v1.POST("/qr/extract", s.handleQR)
		v1.POST("/expenses/categorize", s.handleCategorize)
	}
}

// Run starts the HTTP server and shuts it down when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.config.Address).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"llm":         s.pipeline.HasLLM(),
		"storage":     s.repo != nil,
		"acquisition": s.acquirer != nil,
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	var in processor.Input
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ExtractResponse{Success: false, Error: "invalid JSON body"})
		return
	}
	if in.Empty() {
		c.JSON(http.StatusBadRequest, ExtractResponse{Success: false, Error: processor.ErrNoInput.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ExtractTimeout)
	defer cancel()

	res, err := s.pipeline.Process(ctx, in)
	if err != nil {
		s.logger.Warn().Err(err).Msg("extraction failed")
		c.JSON(statusFor(err), ExtractResponse{Success: false, Error: err.Error(), ErrorKind: model.KindOf(err)})
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{
		Success:        true,
		Data:           res.Data,
		ProcessingInfo: &res.Info,
		Warnings:       res.Warnings,
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	var gate store.DuplicateGate
	if s.repo != nil {
		gate = s.repo
	}
	result := cufe.Validate(c.Request.Context(), req.CUFE, store.Checker(gate, s.userID(req.UserID)))
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleQR(c *gin.Context) {
	var req QRRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	resp := QRResponse{InvoiceQR: cufe.LooksLikeInvoiceQR(req.Content)}
	if ext, ok := cufe.Extract(req.Content); ok {
		v := cufe.Validate(c.Request.Context(), ext.Code, nil)
		resp.Found = true
		resp.Extraction = &ext
		resp.Validation = &v
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCategorize(c *gin.Context) {
	data := model.NewExtractedInvoiceData()
	if err := c.ShouldBindJSON(data); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice data"})
		return
	}
	c.JSON(http.StatusOK, CategorizeResponse{Expenses: s.categorizer.BuildSuggestedExpenses(data)})
}

func (s *Server) handleSave(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage not configured"})
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cufe and data are required"})
		return
	}

	ctx := c.Request.Context()
	userID := s.userID(req.UserID)
	v := cufe.Validate(ctx, req.CUFE, store.Checker(s.repo, userID))
	if !v.IsValid {
		err := v.Err()
		c.JSON(statusFor(err), ErrorResponse{Error: v.Error, Kind: v.Kind})
		return
	}

	expenses := req.Expenses
	if expenses == nil {
		expenses = s.categorizer.BuildSuggestedExpenses(req.Data)
	}

	id, err := s.repo.SaveInvoice(ctx, store.InvoiceRecord{UserID: userID, CUFE: v.Code, Data: req.Data})
	if err != nil {
		s.saveError(c, err)
		return
	}
	if err := s.repo.CreateExpenses(ctx, id, userID, expenses); err != nil {
		s.saveError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveResponse{InvoiceID: id, Expenses: len(expenses)})
}

func (s *Server) saveError(c *gin.Context, err error) {
	s.logger.Error().Err(err).Msg("save invoice failed")
	if errors.Is(err, store.ErrDuplicate) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: cufe.MessageAlreadyExists, Kind: model.KindDuplicateCUFE})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not save invoice", Kind: model.KindSaveFailed, Details: err.Error()})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage not configured"})
		return
	}
	rec, err := s.repo.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListExpenses(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage not configured"})
		return
	}
	id := c.Param("id")
	if _, err := s.repo.GetInvoice(c.Request.Context(), id); err != nil {
		s.lookupError(c, err)
		return
	}
	list, err := s.repo.ListExpenses(c.Request.Context(), id)
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, CategorizeResponse{Expenses: list})
}

func (s *Server) lookupError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "invoice not found"})
		return
	}
	s.logger.Error().Err(err).Msg("invoice lookup failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "invoice lookup failed"})
}

// handleAcquire runs a processing session and relays its snapshots as
// server-sent events until the session ends or the client goes away.
func (s *Server) handleAcquire(c *gin.Context) {
	if s.acquirer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "acquisition service not configured"})
		return
	}
	var req AcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = s.config.MaxRetries
	}
	if req.CaptchaAPIKey == "" {
		req.CaptchaAPIKey = s.config.CaptchaAPIKey
	}

	notify := make(chan struct{}, 1)
	opts := []session.Option{
		session.WithCategorizer(s.categorizer),
		session.WithLogger(s.logger),
		session.WithDefaultTimeout(s.config.AcquisitionTimeout),
		session.WithObserver(func(session.Session) {
			select {
			case notify <- struct{}{}:
			default:
			}
		}),
	}
	if s.repo != nil {
		opts = append(opts, session.WithDuplicateGate(s.repo), session.WithInvoiceStore(s.repo))
	}
	orch := session.NewOrchestrator(s.acquirer, opts...)

	ctx := c.Request.Context()
	if err := orch.Start(ctx, s.userID(req.UserID), req.CUFE, session.StartOptions{
		MaxRetries:    req.MaxRetries,
		CaptchaAPIKey: req.CaptchaAPIKey,
	}); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: orch.Snapshot().Error, Kind: model.KindOf(err)})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-notify:
		case <-ctx.Done():
			orch.Cancel()
			return false
		}

		snap := orch.Snapshot()
		if snap.Status.Busy() {
			c.SSEvent(acquisition.EventProgress, snap)
			return true
		}

		if snap.Status == session.StatusSuccess && req.Save && s.repo != nil {
			c.SSEvent(acquisition.EventProgress, snap)
			if _, err := orch.Persist(ctx, nil); err != nil {
				s.logger.Warn().Err(err).Msg("auto save failed")
			}
			snap = orch.Snapshot()
		}

		if snap.Status == session.StatusError {
			c.SSEvent(acquisition.EventError, snap)
		} else {
			c.SSEvent(acquisition.EventComplete, snap)
		}
		return false
	})
}

func (s *Server) userID(requested string) string {
	if requested != "" {
		return requested
	}
	return s.config.DefaultUserID
}

func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidCUFE:
		return http.StatusBadRequest
	case model.KindDuplicateCUFE:
		return http.StatusConflict
	case model.KindNetwork:
		return http.StatusBadGateway
	case model.KindExtractionFailed, model.KindProcessingFailed:
		return http.StatusUnprocessableEntity
	}
	var perr *model.ParseError
	if errors.As(err, &perr) {
		return http.StatusBadRequest
	}
	var exErr *model.ExtractionError
	if errors.As(err, &exErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
