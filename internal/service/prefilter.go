package service

import "strings"

// FileType classifies a document by its extension, before any bytes are
// downloaded (C3, spec §4.3).
type FileType string

const (
	FileTypePDF         FileType = "pdf"
	FileTypeImage       FileType = "image"
	FileTypeWord        FileType = "word"
	FileTypeText        FileType = "text"
	FileTypeUnsupported FileType = "unsupported"
	FileTypeUnknown     FileType = "unknown"
)

var supportedExtensions = map[string]FileType{
	"pdf": FileTypePDF,

	"jpg": FileTypeImage, "jpeg": FileTypeImage, "png": FileTypeImage,
	"bmp": FileTypeImage, "tiff": FileTypeImage, "tif": FileTypeImage, "gif": FileTypeImage,

	"docx": FileTypeWord,

	"txt": FileTypeText, "text": FileTypeText, "log": FileTypeText,
	"md": FileTypeText, "markdown": FileTypeText, "csv": FileTypeText,
	"tsv": FileTypeText, "rtf": FileTypeText,
}

// unsupportedExtensions are known formats the pipeline deliberately never
// processes; their skip reason is more specific than a bare "unknown".
var unsupportedExtensions = map[string]struct{}{
	"doc": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {},
	"mp4": {}, "avi": {}, "mov": {}, "mp3": {}, "wav": {},
	"odt": {}, "ods": {}, "odp": {},
	"dwg": {}, "dxf": {},
	"mdb": {}, "accdb": {},
}

// ClassifyFile returns the FileType implied by a catalog object key's
// extension, without touching the object store.
func ClassifyFile(objectKey string) FileType {
	ext := extensionOf(objectKey)
	if ext == "" {
		return FileTypeUnknown
	}
	if ft, ok := supportedExtensions[ext]; ok {
		return ft
	}
	if _, ok := unsupportedExtensions[ext]; ok {
		return FileTypeUnsupported
	}
	return FileTypeUnknown
}

// PrefilterDecision is the pre-filter's early-skip verdict (C3).
type PrefilterDecision struct {
	ShouldSkip bool
	SkipReason string
}

// Prefilter decides whether a document should be skipped before it is
// downloaded, based solely on its object key (spec §4.3).
func Prefilter(objectKey string) PrefilterDecision {
	ext := extensionOf(objectKey)
	if ext == "" {
		return PrefilterDecision{ShouldSkip: true, SkipReason: "no_file_extension"}
	}

	switch ClassifyFile(objectKey) {
	case FileTypeUnsupported:
		return PrefilterDecision{ShouldSkip: true, SkipReason: unsupportedReason(ext)}
	case FileTypeUnknown:
		return PrefilterDecision{ShouldSkip: true, SkipReason: "unknown_file_type_" + ext}
	default:
		return PrefilterDecision{ShouldSkip: false}
	}
}

func unsupportedReason(ext string) string {
	switch ext {
	case "doc":
		return "legacy_doc_format_not_supported"
	case "xls", "xlsx":
		return "excel_files_not_supported"
	case "ppt", "pptx":
		return "powerpoint_files_not_supported"
	default:
		return "unsupported_file_type_" + ext
	}
}

func extensionOf(objectKey string) string {
	objectKey = strings.TrimSpace(objectKey)
	idx := strings.LastIndex(objectKey, ".")
	if idx == -1 || idx == len(objectKey)-1 {
		return ""
	}
	return strings.ToLower(objectKey[idx+1:])
}
