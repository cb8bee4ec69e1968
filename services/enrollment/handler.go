package enrollment

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
	g := r.Group("/enrollment")
	g.POST("/request", h.Request)
	g.POST("/respond", h.Respond)
}

type requestBody struct {
	ProgramID  string `json:"program_id" binding:"required"`
	CustomerID string `json:"customer_id" binding:"required"`
}

func (h *Handler) Request(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.BusinessID == "" || identity.Role != auth.RoleBusiness {
		c.Error(errutil.Forbidden("only businesses may invite customers", nil))
		return
	}

	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	req, err := h.svc.Request(c.Request.Context(), identity.BusinessID, body.ProgramID, body.CustomerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": req})
}

type respondBody struct {
	RequestID string `json:"request_id" binding:"required"`
	Accept    *bool  `json:"accept" binding:"required"`
}

func (h *Handler) Respond(c *gin.Context) {
	identity := auth.FromContext(c)
	if identity.ActorID == "" {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.svc.Respond(c.Request.Context(), identity.ActorID, body.RequestID, *body.Accept)
	if err != nil {
		c.Error(err)
		return
	}

	resp := gin.H{"request": result.Request}
	if result.Card != nil {
		resp["card"] = result.Card
	}
	c.JSON(http.StatusOK, resp)
}
