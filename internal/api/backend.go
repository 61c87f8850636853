// Package api exposes the storage and front-end surfaces over HTTP.
//
// Every storage operation is a unary POST with a JSON body; the shapes live
// in internal/rpc. Handlers stay thin: decode, call the store, encode.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tribbler/internal/rpc"
	"tribbler/internal/store"
)

// Backend serves one backend's storage over HTTP.
type Backend struct {
	store store.Storage
}

func NewBackend(s store.Storage) *Backend {
	return &Backend{store: s}
}

// SetupRoutes registers the storage endpoints on r.
func (b *Backend) SetupRoutes(r *gin.Engine) {
	st := r.Group("/storage")
	{
		st.POST("/get", b.Get)
		st.POST("/set", b.Set)
		st.POST("/keys", b.Keys)
		st.POST("/list-get", b.ListGet)
		st.POST("/list-append", b.ListAppend)
		st.POST("/list-remove", b.ListRemove)
		st.POST("/list-keys", b.ListKeys)
		st.POST("/clock", b.Clock)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (b *Backend) Get(c *gin.Context) {
	var req rpc.Key
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, err := b.store.Get(c.Request.Context(), req.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// absent keys travel as the empty string
	c.JSON(http.StatusOK, rpc.Value{Value: value})
}

func (b *Backend) Set(c *gin.Context) {
	var req rpc.KeyValue
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := b.store.Set(c.Request.Context(), store.KeyValue{Key: req.Key, Value: req.Value})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.Bool{Value: ok})
}

func (b *Backend) Keys(c *gin.Context) {
	var req rpc.Pattern
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keys, err := b.store.Keys(c.Request.Context(), store.Pattern{Prefix: req.Prefix, Suffix: req.Suffix})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.StringList{List: keys})
}

func (b *Backend) ListGet(c *gin.Context) {
	var req rpc.Key
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := b.store.ListGet(c.Request.Context(), req.Key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.StringList{List: list})
}

func (b *Backend) ListAppend(c *gin.Context) {
	var req rpc.KeyValue
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := b.store.ListAppend(c.Request.Context(), store.KeyValue{Key: req.Key, Value: req.Value})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.Bool{Value: ok})
}

func (b *Backend) ListRemove(c *gin.Context) {
	var req rpc.KeyValue
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	removed, err := b.store.ListRemove(c.Request.Context(), store.KeyValue{Key: req.Key, Value: req.Value})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.ListRemoveResponse{Removed: removed})
}

func (b *Backend) ListKeys(c *gin.Context) {
	var req rpc.Pattern
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keys, err := b.store.ListKeys(c.Request.Context(), store.Pattern{Prefix: req.Prefix, Suffix: req.Suffix})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.StringList{List: keys})
}

func (b *Backend) Clock(c *gin.Context) {
	var req rpc.Clock
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := b.store.Clock(c.Request.Context(), req.Timestamp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpc.Clock{Timestamp: ts})
}
