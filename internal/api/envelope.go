package api

import (
	"commerce-api/internal/apperr"

	"github.com/gin-gonic/gin"
)

// Envelope is the response shape for every endpoint:
// {success, data|null, error|null}.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *ErrorBody  `json:"error"`
}

// ErrorBody is the serialized form of an application error.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondWithError(c *gin.Context, err *apperr.Error) {
	c.JSON(err.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    string(err.Code),
			Message: err.Message,
			Details: err.Details,
		},
	})
}
