package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS builds the gin-contrib/cors handler for the allowed origins. A "*"
// entry allows any origin without credentials.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderXRequestID},
		ExposeHeaders: []string{"Content-Length", HeaderXRequestID},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range allowedOrigins {
		if o == "*" {
			config.AllowAllOrigins = true
			return cors.New(config)
		}
	}
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	return cors.New(config)
}
