package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
)

// CartoonService is the cartoon flow used by the handlers
type CartoonService interface {
	Create(ctx context.Context, userID, input string) (*domain.Generation, error)
	CreateFromTitle(ctx context.Context, newsTitle string) (*domain.Cartoon, error)
	RegenerateTitle(ctx context.Context, input string) (string, error)
	Daily(ctx context.Context) ([]domain.Cartoon, error)
	Recent(ctx context.Context) ([]domain.Cartoon, error)
	CartoonByID(ctx context.Context, id int64) (*domain.Cartoon, error)
	GenerationByID(ctx context.Context, id int64) (*domain.Generation, error)
	ShareLink(ctx context.Context, id int64, siteURL string) (domain.ShareLink, error)
}

// UserIDHeader carries the id of the signed-in user
const UserIDHeader = "X-User-ID"

type Handler struct {
	cartoons CartoonService
	images   domain.ImagePipeline
	relay    domain.ImageRelay
	siteURL  string
	log      *zap.Logger
}

func NewHandler(cartoons CartoonService, images domain.ImagePipeline, relay domain.ImageRelay, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cartoons: cartoons,
		images:   images,
		relay:    relay,
		log:      log,
	}
}

// WithSiteURL fixes the public site address used in share links.
// Without it the address is taken from the request.
func (h *Handler) WithSiteURL(siteURL string) *Handler {
	h.siteURL = strings.TrimRight(siteURL, "/")
	return h
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type titleRequest struct {
	Title string `json:"title"`
}

func (h *Handler) GenerateImage(c *gin.Context) {
	var req promptRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.images.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		h.fail(c, "Failed to generate image", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) RelayImage(c *gin.Context) {
	var req urlRequest
	if !h.bind(c, &req) {
		return
	}

	publicURL, err := h.relay.Relay(c.Request.Context(), req.URL, 0)
	if err != nil {
		h.fail(c, "Failed to store image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": publicURL})
}

func (h *Handler) CreateGeneration(c *gin.Context) {
	var req inputRequest
	if !h.bind(c, &req) {
		return
	}

	gen, err := h.cartoons.Create(c.Request.Context(), c.GetHeader(UserIDHeader), req.Input)
	if err != nil {
		h.fail(c, "Failed to create generation", err)
		return
	}

	c.JSON(http.StatusCreated, gen)
}

func (h *Handler) GetGeneration(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	gen, err := h.cartoons.GenerationByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get generation", err)
		return
	}

	c.JSON(http.StatusOK, gen)
}

func (h *Handler) GenerateTitle(c *gin.Context) {
	var req inputRequest
	if !h.bind(c, &req) {
		return
	}

	title, err := h.cartoons.RegenerateTitle(c.Request.Context(), req.Input)
	if err != nil {
		h.fail(c, "Failed to generate title", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"title": title})
}

func (h *Handler) CreateCartoon(c *gin.Context) {
	var req titleRequest
	if !h.bind(c, &req) {
		return
	}

	cartoon, err := h.cartoons.CreateFromTitle(c.Request.Context(), req.Title)
	if err != nil {
		h.fail(c, "Failed to create cartoon", err)
		return
	}

	c.JSON(http.StatusCreated, cartoon)
}

func (h *Handler) DailyCartoons(c *gin.Context) {
	cartoons, err := h.cartoons.Daily(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list daily cartoons", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cartoons": cartoons})
}

func (h *Handler) RecentCartoons(c *gin.Context) {
	cartoons, err := h.cartoons.Recent(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list recent cartoons", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cartoons": cartoons})
}

func (h *Handler) GetCartoon(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	cartoon, err := h.cartoons.CartoonByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get cartoon", err)
		return
	}

	c.JSON(http.StatusOK, cartoon)
}

func (h *Handler) ShareCartoon(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	base := h.siteURL
	if base == "" {
		base = siteURL(c.Request)
	}

	link, err := h.cartoons.ShareLink(c.Request.Context(), id, base)
	if err != nil {
		h.fail(c, "Failed to build share link", err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// fail logs err and answers with its flattened message
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
	} else {
		h.log.Info(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": domain.UserMessage(err)})
}

// StatusFor maps a domain error to an HTTP status code
func StatusFor(err error) int {
	var (
		allFailed *domain.AllProvidersFailedError
		genErr    *domain.GenerationError
	)
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &allFailed), errors.As(err, &genErr), errors.Is(err, domain.ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func siteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
