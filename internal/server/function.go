package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sleepstars/chatproxy/internal/callable"
	"github.com/sleepstars/chatproxy/internal/models"
)

// maxBodyBytes caps the callable request envelope.
const maxBodyBytes = 10 << 20

// invoke decodes the callable request envelope and hands the invocation to
// the handler. A body that cannot be decoded, or exceeds maxBodyBytes,
// leaves the payload empty so the handler reports it as missing.
func (s *Server) invoke(c *gin.Context) {
	inv := &models.Invocation{RequestID: c.GetString(requestIDKey)}
	if auth, ok := c.Get(authKey); ok {
		inv.Auth, _ = auth.(*models.AuthContext)
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req models.CallableRequest
	if body, err := c.GetRawData(); err == nil && json.Unmarshal(body, &req) == nil && req.Data != nil {
		inv.Payload = req.Data.Payload
	}

	result, err := s.handler.Handle(c.Request.Context(), inv)
	if err != nil {
		ce := callable.Normalize(err)
		c.JSON(ce.HTTPStatus(), ce.Envelope())
		return
	}

	// Written by hand so the upstream bytes reach the caller untouched.
	out := make([]byte, 0, len(result)+len(`{"result":}`))
	out = append(out, `{"result":`...)
	out = append(out, result...)
	out = append(out, '}')
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}
