package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示来源返回了非 2xx 的 HTTP 状态码。
// URL 需由调用方脱敏（例如去掉 API key）后再填入。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
	// Detail 是服务端给出的错误说明（例如 API 的 error.message），可为空。
	Detail string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := fmt.Sprintf("HTTP %d", e.StatusCode)
	if loc := strings.TrimSpace(e.Location); loc != "" {
		msg += " location=" + loc
	}
	if d := strings.TrimSpace(e.Detail); d != "" {
		msg += ": " + d
	}
	return msg
}
