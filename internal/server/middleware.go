package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sleepstars/chatproxy/internal/callable"
	"github.com/sleepstars/chatproxy/internal/identity"
	"github.com/sleepstars/chatproxy/internal/logger"
	"github.com/sleepstars/chatproxy/internal/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	authKey         = "auth"
)

// requestID honours an incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField(requestIDKey, c.GetString(requestIDKey)).Debug("%s %s status=%d duration_ms=%d",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}

// authenticate resolves the caller identity. No Authorization header means
// a guest invocation; a header that does not verify is rejected.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := identity.BearerToken(header)
		if !ok || s.verifier == nil {
			s.reject(c, callable.NewError(callable.Unauthenticated, callable.MsgInvalidToken))
			return
		}
		uid, err := s.verifier.Verify(c.Request.Context(), token)
		if err != nil || uid == "" {
			s.logger.WithField(requestIDKey, c.GetString(requestIDKey)).Warn("Rejected caller token")
			s.reject(c, callable.NewError(callable.Unauthenticated, callable.MsgInvalidToken))
			return
		}

		c.Set(authKey, &models.AuthContext{UID: uid})
		c.Next()
	}
}

// limit holds one of MaxInstances slots for the rest of the request. A
// request waits for a free slot for at most SlotTimeout, or until its
// context ends.
func (s *Server) limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.slots == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if s.cfg.SlotTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.SlotTimeout)
			defer cancel()
		}

		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			s.logger.WithField(requestIDKey, c.GetString(requestIDKey)).Warn("No free instance, rejecting request")
			s.reject(c, callable.NewError(callable.ResourceExhausted, callable.MsgTooManyRequests))
			return
		}
		s.metrics.InflightAdd(1)
		defer func() {
			s.metrics.InflightAdd(-1)
			<-s.slots
		}()

		c.Next()
	}
}

func (s *Server) reject(c *gin.Context, ce *callable.Error) {
	s.metrics.RecordInvocation(string(ce.Kind))
	c.AbortWithStatusJSON(ce.HTTPStatus(), ce.Envelope())
}
