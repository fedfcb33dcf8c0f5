/*
Copyright 2024 Dealseal Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/dealseal/dealseal/config"
)

const (
	KeyHeader = "X-Dealseal-Key"
)

// SecretKeyAuthMiddleware rejects requests that do not carry the configured
// secret key. The health endpoint stays open so load balancers can probe it.
func SecretKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/" {
			c.Next()
			return
		}

		conf, err := config.Fetch()
		if err != nil {
			c.JSON(500, gin.H{"error": "Configuration not loaded"})
			c.Abort()
			return
		}

		key := c.GetHeader(KeyHeader)
		if key == "" {
			c.JSON(401, gin.H{"error": "Authentication required. Use X-Dealseal-Key header"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(conf.Server.SecretKey)) != 1 {
			c.JSON(401, gin.H{"error": "Invalid key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
