package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 附件相关常量
const (
	MimeImage = "image/"
	MimeText  = "text/"
	MimePDF   = "application/pdf"

	MaxAttachments = 5
)

// AllowedAttachmentTypes 允许随消息上传的附件类型
var AllowedAttachmentTypes = []string{MimeImage, MimeText, MimePDF}

// DateFormat 统计按 UTC 自然日聚合使用的日期格式
const DateFormat = "2006-01-02"
