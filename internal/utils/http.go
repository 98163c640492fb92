package utils

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// Redirect answers htmx requests with status and an HX-Redirect header, and
// everything else with 303 See Other.
func Redirect(c *gin.Context, status int, location string) {
	if IsHTMX(c) {
		c.Header("HX-Redirect", location)
		c.Status(status)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
