package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxFilenameLength 文件名默认最大长度
const DefaultMaxFilenameLength = 255

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9.\-_]`)

// SecureFilename 把任意字符串转换为可作为单个路径段使用的文件名
// 只保留最后一段路径，NFKD 规范化后丢弃非 ASCII 字符，其余非法字符替换为 "_"
func SecureFilename(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxFilenameLength
	}

	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, name)

	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > maxLength {
		name = name[:maxLength]
	}

	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
