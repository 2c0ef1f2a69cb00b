package server

import (
	"io"
	"net/http"

	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Callback receives STK push results. The gateway retries anything other
// than a 200 acknowledgement, so every outcome is acknowledged.
func (s *Server) Callback(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		s.log.Warn("unable to read callback body", zap.Error(err))
		c.JSON(http.StatusOK, mpesa.CallbackResponse{
			ResultCode: mpesa.ResultCodeSuccess,
			ResultDesc: mpesa.AcceptedDescription,
		})
		return
	}

	c.JSON(http.StatusOK, s.paymentSvc.HandleCallback(c.Request.Context(), payload))
}
