package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/utils"
)

// Recovery 恢复中间件，处理panic并返回统一错误格式
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler 用于中断响应，不能吞掉
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				obs.Logger().Error().
					Str("request_id", requestID(r)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", stack).
					Msg("panic recovered")

				if cfg.IsDevelopment() {
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, utils.CodeInternal,
						fmt.Sprintf("Internal server error: %v", rec), string(stack))
					return
				}
				utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
