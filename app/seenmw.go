// app/seenmw.go
package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen records activity at most once per throttle per user. Without
// redis every request writes.
func TouchLastSeen(users UserDirectory, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ctxUserID)
		if uid == "" {
			c.Next()
			return
		}

		if rdb != nil {
			key := "user:lastseen:" + uid
			if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); !ok {
				c.Next()
				return
			}
		}
		_ = users.TouchUserSeen(c, uid) // 忽略错误，不阻塞请求
		c.Next()
	}
}
