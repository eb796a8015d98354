package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/RobertMJr/my-blog/internal/logging"
)

const dbErrorMessage = "Error connecting to db"

// ErrorResponse is the body of every failed data access.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// dbError reports any store failure, whatever its cause, as a 500.
func dbError(c *gin.Context, err error) {
	log.Error().
		Err(err).
		Str("request_id", c.GetString(logging.RequestIDKey)).
		Str("path", c.Request.URL.Path).
		Msg("error connecting to db")

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Message: dbErrorMessage,
		Error:   err.Error(),
	})
}
