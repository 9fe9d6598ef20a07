package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ops/utils"
)

// WebSocketAuthMiddleware authenticates streaming subscribers. Browsers
// cannot set headers on websocket upgrades, so the token rides the query
// string.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("role", claims.Role)
		c.Set("userID", claims.UserID)
		c.Set("restaurantID", claims.RestaurantID)

		c.Next()
	}
}
