package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/client"
	"github.com/gamecafe/panelsync/internal/httputil"
	"github.com/gamecafe/panelsync/internal/querycache"
)

const (
	// maxPrefixLen caps the number of elements in a key or prefix.
	maxPrefixLen = 8
	fetchTimeout = 15 * time.Second
)

// CacheHandler exposes the query cache.
type CacheHandler struct {
	cache CacheStore
	log   *logrus.Logger
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(cache CacheStore, log *logrus.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, log: log}
}

type cacheListResponse struct {
	Entries []querycache.Entry `json:"entries"`
	Total   int                `json:"total"`
}

// List handles GET /api/v1/cache. Repeated ?prefix= parameters filter by key
// prefix; ?data=false omits payloads.
func (h *CacheHandler) List(c *gin.Context) {
	prefix := querycache.Key(c.QueryArray("prefix"))

	withData := true
	if raw := c.Query("data"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "data must be a boolean")
			return
		}
		withData = v
	}

	entries := make([]querycache.Entry, 0)
	for _, e := range h.cache.Entries() {
		if !e.Key.HasPrefix(prefix) {
			continue
		}
		if !withData {
			e.Data = nil
		}
		entries = append(entries, e)
	}

	c.JSON(http.StatusOK, cacheListResponse{Entries: entries, Total: h.cache.Len()})
}

type fetchResponse struct {
	Key  querycache.Key `json:"key"`
	Data any            `json:"data"`
}

// Fetch handles GET /api/v1/cache/fetch. Repeated ?key= parameters are the
// key elements. A fresh entry is served from the cache; anything else is
// loaded from the panel API and cached.
func (h *CacheHandler) Fetch(c *gin.Context) {
	key := querycache.Key(c.QueryArray("key"))

	switch {
	case len(key) == 0:
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "key is required")
		return
	case len(key) > maxPrefixLen:
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "key has too many elements")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	data, err := h.cache.Fetch(ctx, key)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, fetchResponse{Key: key, Data: data})
	case errors.Is(err, querycache.ErrNoFetcher):
		httputil.RespondError(c, http.StatusServiceUnavailable, httputil.CodeUnavailable, "cache has no upstream")
	case client.IsNotFound(err):
		httputil.RespondError(c, http.StatusNotFound, httputil.CodeNotFound, "not found upstream")
	default:
		h.log.WithError(err).WithField("key", key.String()).Warn("cache fetch failed")
		httputil.RespondError(c, http.StatusBadGateway, httputil.CodeUpstream, "upstream request failed")
	}
}

type invalidateRequest struct {
	Prefix []string `json:"prefix"`
	All    bool     `json:"all"`
}

type invalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// Invalidate handles POST /api/v1/cache/invalidate. Exactly one of prefix or
// all must be given.
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "invalid JSON body")
		return
	}

	switch {
	case req.All && len(req.Prefix) > 0:
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "prefix and all are mutually exclusive")
		return
	case !req.All && len(req.Prefix) == 0:
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "prefix or all is required")
		return
	case len(req.Prefix) > maxPrefixLen:
		httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "prefix has too many elements")
		return
	}

	var n int
	if req.All {
		n = h.cache.InvalidateAll()
	} else {
		n = h.cache.Invalidate(querycache.Key(req.Prefix))
	}

	h.log.WithFields(logrus.Fields{
		"prefix":      req.Prefix,
		"all":         req.All,
		"invalidated": n,
	}).Info("cache invalidated from ops api")

	c.JSON(http.StatusOK, invalidateResponse{Invalidated: n})
}
