package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openviz/widget-service/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service-layer error onto the wire using the
// error taxonomy; anything untagged comes out as a plain 500.
func RespondServiceError(c *gin.Context, err error) {
	RespondError(c, apierr.Status(err), apierr.Code(err), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondData(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, gin.H{"data": payload})
}
