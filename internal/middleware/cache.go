package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore disables caching for responses that reflect live state.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
