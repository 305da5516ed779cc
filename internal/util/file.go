package util

import (
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ValidateMimeType 深度校验文件 MIME 类型
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/", "image/png"
func ValidateMimeType(data []byte, allowedTypes []string) (string, error) {
	mtype := mimetype.Detect(data)

	for _, allowed := range allowedTypes {
		if strings.HasSuffix(allowed, "/") && strings.HasPrefix(mtype.String(), allowed) {
			return mtype.String(), nil
		}
		if mtype.Is(allowed) {
			return mtype.String(), nil
		}
	}

	return mtype.String(), errors.New("invalid file type: " + mtype.String())
}
