package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/comstore/storefront_sdk_go/pkg/product"
	productmock "github.com/comstore/storefront_sdk_go/pkg/product/mock"
)

type failConfig struct {
	rate float64
	code int
}

type serverConfig struct {
	latency time.Duration
	fail    failConfig
	token   string
	// chance overrides the failure dice in tests.
	chance func() float64
}

type listResponse struct {
	Data  []product.Product `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type productHandler struct {
	store  *productmock.Mock
	logger *log.Entry
}

func newRouter(store *productmock.Mock, cfg serverConfig, logger *log.Entry) *gin.Engine {
	if cfg.chance == nil {
		cfg.chance = rand.Float64
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(withMiddleware(cfg))

	h := &productHandler{store: store, logger: logger}
	h.registerRoutes(router)
	return router
}

func (h *productHandler) registerRoutes(router gin.IRouter) {
	products := router.Group("/product")
	{
		products.GET("", h.list)
		products.POST("", h.create)
		products.GET("/:id", h.get)
		products.PUT("/:id", h.update)
		products.DELETE("/:id", h.delete)
	}
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request completed")
	}
}

// withMiddleware applies the bearer check, artificial latency and failure
// injection, in that order.
func withMiddleware(cfg serverConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.token != "" && c.GetHeader("Authorization") != "Bearer "+cfg.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
			return
		}
		if cfg.latency > 0 {
			select {
			case <-time.After(cfg.latency):
			case <-c.Request.Context().Done():
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
		}
		if cfg.fail.rate > 0 && cfg.chance() < cfg.fail.rate {
			status := cfg.fail.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "failure injected"})
			return
		}
		c.Next()
	}
}

func (h *productHandler) list(c *gin.Context) {
	all, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filtered := make([]product.Product, 0, len(all))
		for _, p := range all {
			if strings.EqualFold(p.Category, category) {
				filtered = append(filtered, p)
			}
		}
		all = filtered
	}

	page, limit := queryInt(c, "page", 1), queryInt(c, "limit", 0)
	data := all
	if limit > 0 {
		start := (page - 1) * limit
		if start > len(all) {
			start = len(all)
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}
		data = all[start:end]
	}
	c.JSON(http.StatusOK, listResponse{Data: data, Total: len(all), Page: page, Limit: limit})
}

func (h *productHandler) get(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *productHandler) create(c *gin.Context) {
	var patch product.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	p, err := h.store.Create(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("product_id", p.ID).Info("product created")
	c.JSON(http.StatusCreated, p)
}

func (h *productHandler) update(c *gin.Context) {
	var patch product.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	p, err := h.store.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *productHandler) delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *productHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var statusErr *product.HTTPStatusError
	if errors.As(err, &statusErr) {
		status = statusErr.Code
	}
	h.logger.WithError(err).WithField("status", status).Warn("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v outside [0, 1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			if val < 400 || val > 599 {
				return failConfig{}, fmt.Errorf("fail code %d is not an error status", val)
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
