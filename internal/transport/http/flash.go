package http

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "gifchat_flash"
	flashMaxAge     = 60
)

// setFlash stores a one-shot message shown by the next directory render.
func setFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, url.QueryEscape(msg), flashMaxAge, "/", "", false, true)
}

// popFlash returns the pending flash message and clears it.
func popFlash(c *gin.Context) string {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return ""
	}
	c.SetCookie(flashCookieName, "", -1, "/", "", false, true)

	msg, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return msg
}
