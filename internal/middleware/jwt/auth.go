package jwt

import (
	"strings"

	"OpenCollab/pkg/back"
	"OpenCollab/pkg/util/myjwt"
	"OpenCollab/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// ContextUserKey 鉴权通过后调用方身份在 gin.Context 中的 key
const ContextUserKey = "user_id"

func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := myjwt.ParseToken(tokenString)
		if err != nil {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims.UserId)
		c.Set("username", claims.Username)
		c.Next()
	}
}
