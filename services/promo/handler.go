package promo

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/promos")
	g.POST("", h.Create)
	g.POST("/:code/cancel", h.Cancel)
	g.POST("/redemptions/:id/deliver", h.Deliver)
}

type createBody struct {
	Kind      string     `json:"kind" binding:"required"`
	Value     int64      `json:"value" binding:"required"`
	MaxUses   int64      `json:"max_uses" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) Create(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses may create promo codes", nil))
		return
	}

	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	promo, err := h.svc.Create(c.Request.Context(), CreateParams{
		BusinessID: identity.BusinessID,
		Kind:       RewardKind(body.Kind),
		Value:      body.Value,
		MaxUses:    body.MaxUses,
		ExpiresAt:  body.ExpiresAt,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"promo": promo})
}

func (h *Handler) Cancel(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses may cancel promo codes", nil))
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), identity.BusinessID, c.Param("code")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Deliver(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses may deliver redemptions", nil))
		return
	}

	if err := h.svc.Deliver(c.Request.Context(), identity.BusinessID, c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
