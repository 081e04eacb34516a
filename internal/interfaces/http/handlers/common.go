// Package handlers implements the HTTP endpoints of the scheduling service.
package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicplan/planschedule/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps an error to its HTTP status via the error code table.
// Server-side failures are masked; their detail stays in the logs.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()

	resp := ErrorResponse{Code: code.String()}
	if code.IsClientError() {
		resp.Message = err.Error()
		var appErr *errors.AppError
		if goerrors.As(err, &appErr) {
			resp.Detail = appErr.Detail
		}
	} else {
		resp.Message = "internal server error"
	}

	_ = c.Error(err)
	c.JSON(status, resp)
}

// bindJSON decodes the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    errors.CodeInvalidParam.String(),
			Message: "malformed request body: " + err.Error(),
		})
		return false
	}
	return true
}
