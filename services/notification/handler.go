package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/notifications")
	g.GET("", h.List)
	g.PUT("/:id", h.MarkRead)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.ActorID == "" {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	items, pageInfo, err := h.svc.List(c.Request.Context(), identity.ActorID, p)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items, "page_info": pageInfo})
}

func (h *Handler) MarkRead(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.ActorID == "" {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), identity.ActorID, c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Delete(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.ActorID == "" {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity.ActorID, c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
