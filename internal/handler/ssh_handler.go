package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paas-deployer/internal/model"
	"paas-deployer/internal/service"
)

type SSHHandler struct {
	sshService *service.SSHService
}

func NewSSHHandler(sshService *service.SSHService) *SSHHandler {
	return &SSHHandler{
		sshService: sshService,
	}
}

func (h *SSHHandler) TestConnection(c *gin.Context) {
	var req model.SSHCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := h.sshService.TestConnection(c.Request.Context(), &req)
	c.JSON(http.StatusOK, result)
}

func (h *SSHHandler) BatchTestConnection(c *gin.Context) {
	var req model.BatchSSHCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	results := h.sshService.BatchTestConnection(c.Request.Context(), &req)
	c.JSON(http.StatusOK, results)
}
