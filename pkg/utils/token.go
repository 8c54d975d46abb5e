package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultTokenBytes is the entropy of invitation tokens.
const DefaultTokenBytes = 24

// GenerateURLToken 生成 URL-safe 的随机 token，长度约为 4/3*n 字符.
// n <= 0 uses DefaultTokenBytes.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	// RawURLEncoding: 无 '=' 填充，无 '+' '/'
	return base64.RawURLEncoding.EncodeToString(b), nil
}
