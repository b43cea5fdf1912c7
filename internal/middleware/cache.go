package middleware

import "github.com/gin-gonic/gin"

// NoStore marks responses as uncacheable. Exam papers and proctoring
// answers are per-participant and must never sit in a shared cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
