package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
	StorageS3    = "s3"
)

// 文件上传相关常量
const (
	MimeJPEG        = "image/jpeg"
	MimePNG         = "image/png"
	MimeOctetStream = "application/octet-stream"
	MimeCSV         = "text/csv"
	MimeZIP         = "application/zip"
)

var (
	AllowedImageTypes = []string{MimeJPEG, MimePNG}
)

// 上下文键
const (
	ContextSessionKey = "session"
)
