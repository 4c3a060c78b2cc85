package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CORSヘッダーの値
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
)

// CORSMiddleware は全レスポンスにCORSヘッダーを付与し、プリフライトに200で応答する
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)

		// プリフライトはパスに関係なく本文なしで返す
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// accessLogFormatter は `[client] "METHOD PATH PROTO" STATUS SIZE` 形式で1行を作る
func accessLogFormatter(param gin.LogFormatterParams) string {
	size := "-"
	if param.BodySize > 0 {
		size = strconv.Itoa(param.BodySize)
	}

	proto := "HTTP/1.1"
	if param.Request != nil {
		proto = param.Request.Proto
	}

	return fmt.Sprintf("[%s] \"%s %s %s\" %d %s\n",
		param.ClientIP,
		param.Method,
		param.Path,
		proto,
		param.StatusCode,
		size,
	)
}
