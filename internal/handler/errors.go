package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paas-deployer/internal/model"
	"paas-deployer/pkg/utils"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrValidation), errors.Is(err, utils.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: "invalid request payload",
		Details: err.Error(),
	})
}
