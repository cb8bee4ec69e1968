package scan

import (
	"net/http"

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
	g := r.Group("/scan")
	g.POST("/generate", h.Generate)
	g.POST("/validate", h.Validate)
	g.POST("/process", h.Process)
	g.POST("/revoke", h.Revoke)
	g.GET("/status", h.Status)
}

type generateBody struct {
	Kind       string `json:"kind" binding:"required"`
	CustomerID string `json:"customer_id"`
	CardID     string `json:"card_id"`
	ProgramID  string `json:"program_id"`
	CardNumber string `json:"card_number"`
	Code       string `json:"code"`
}

func (h *Handler) Generate(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses issue scan codes", nil))
		return
	}

	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	token, err := h.svc.Generate(c.Request.Context(), GenerateParams{
		BusinessID: identity.BusinessID,
		CustomerID: body.CustomerID,
		Kind:       Kind(body.Kind),
		CardID:     body.CardID,
		ProgramID:  body.ProgramID,
		CardNumber: body.CardNumber,
		Code:       body.Code,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type rawBody struct {
	RawText string `json:"raw_text" binding:"required"`
}

func (h *Handler) Validate(c *gin.Context) {
	var body rawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.svc.Validate(c.Request.Context(), body.RawText)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Process(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.ActorID == "" {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var body rawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.svc.Process(c.Request.Context(), identity, body.RawText)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type revokeBody struct {
	TokenID string `json:"token_id" binding:"required"`
}

func (h *Handler) Revoke(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses revoke scan codes", nil))
		return
	}

	var body revokeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	if err := h.svc.Revoke(c.Request.Context(), identity.BusinessID, body.TokenID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	tokenID := c.Query("token_id")
	if tokenID == "" {
		c.Error(errutil.BadRequest("token_id is required", nil))
		return
	}

	result, err := h.svc.Status(c.Request.Context(), tokenID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
