package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/session"
	"github.com/vovakirdan/gifchat-server/internal/upload"
)

// ContextKeySession is the context key for storing the visitor session.
const ContextKeySession = "session"

// ErrorResponse is the body of every JSON error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionMiddleware attaches a session to every request, issuing a new
// signed cookie when the visitor has none or presents a forged one.
func SessionMiddleware(sessions *session.Manager, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := resolveSession(c.Writer, c.Request, sessions, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to issue session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// resolveSession decodes the session cookie of r. A missing or untrusted
// cookie is replaced by a fresh session written to w.
func resolveSession(w http.ResponseWriter, r *http.Request, sessions *session.Manager, logger *zerolog.Logger) (*session.Session, error) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		sess, err := sessions.Decode(cookie.Value)
		if err == nil {
			return sess, nil
		}
		logger.Debug().Err(err).Msg("discarding session cookie")
	}

	sess := sessions.New()
	token, err := sessions.Encode(sess)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

func sessionFrom(c *gin.Context) *session.Session {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// ErrorMiddleware turns errors recorded by handlers into responses. Room
// admission and validation failures go back to the directory with a flash
// message; anything unexpected is logged and answered with a 500.
func ErrorMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if msg, ok := flashMessage(err); ok {
			setFlash(c, msg)
			c.Redirect(http.StatusFound, "/")
			return
		}

		switch {
		case errors.Is(err, upload.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
		case errors.Is(err, upload.ErrNotImage):
			c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: err.Error()})
		default:
			logger.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("request failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
	}
}

func flashMessage(err error) (string, bool) {
	var verr *rooms.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Invalid room: " + verr.Error(), true
	case errors.Is(err, rooms.ErrNotFound):
		return "Room does not exist.", true
	case errors.Is(err, rooms.ErrUnauthorized):
		return "Wrong password.", true
	case errors.Is(err, rooms.ErrCapacityExceeded):
		return "Room is full.", true
	default:
		return "", false
	}
}
