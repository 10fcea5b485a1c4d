package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// CORS answers browser preflights for the REST routes. origins holds exact
// origins; "*" allows any. The token cookie needs credentials, so the
// request's own origin is echoed instead of a wildcard.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := lo.Contains(origins, "*")
	allowed := lo.SliceToMap(origins, func(o string) (string, struct{}) {
		return strings.ToLower(strings.TrimRight(o, "/")), struct{}{}
	})

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
			if allowAll || ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
