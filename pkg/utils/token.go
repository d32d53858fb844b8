package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionIDBytes is the entropy of a session cookie value.
const SessionIDBytes = 32

// GenerateURLToken 生成 URL-safe 的随机 token，长度约为 4/3*n 字符
// n 为原始随机字节数，推荐 24 或 32
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSessionID 生成会话 cookie 值
func GenerateSessionID() (string, error) {
	return GenerateURLToken(SessionIDBytes)
}
