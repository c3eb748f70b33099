package ingestion

import (
	"path/filepath"
	"strings"
)

// FileKind selects the extraction strategy for an upload. Dispatch is a
// lookup on the normalized MIME type, with an extension fallback for the
// application/octet-stream case.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindPDF
	KindWord       // .docx
	KindLegacyWord // .doc
	KindText       // .txt
	KindCSV
	KindSpreadsheet       // .xlsx
	KindLegacySpreadsheet // .xls, the pre-OPC binary format
	KindSlides            // .pptx
	KindHTML
	KindImage
	KindAudio
	KindVideo
)

func (k FileKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindWord:
		return "word"
	case KindLegacyWord:
		return "legacy-word"
	case KindText:
		return "text"
	case KindCSV:
		return "csv"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindLegacySpreadsheet:
		return "legacy-spreadsheet"
	case KindSlides:
		return "slides"
	case KindHTML:
		return "html"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// IsMedia reports whether the kind has no text structure to extract; media
// uploads flow through the describer and a single pseudo-chunk instead.
func (k FileKind) IsMedia() bool {
	return k == KindImage || k == KindAudio || k == KindVideo
}

var mimeKinds = map[string]FileKind{
	"application/pdf": KindPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": KindWord,
	"application/msword": KindLegacyWord,
	"text/plain":         KindText,
	"text/csv":           KindCSV,
	"application/csv":    KindCSV,
	"application/vnd.ms-excel": KindLegacySpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         KindSpreadsheet,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": KindSlides,
	"text/html":       KindHTML,
	"application/xml": KindHTML,
}

var extKinds = map[string]FileKind{
	".pdf":  KindPDF,
	".docx": KindWord,
	".doc":  KindLegacyWord,
	".txt":  KindText,
	".csv":  KindCSV,
	".xls":  KindLegacySpreadsheet,
	".xlsx": KindSpreadsheet,
	".pptx": KindSlides,
	".html": KindHTML,
	".htm":  KindHTML,
}

// ResolveKind maps a MIME type (plus the original file name for the
// octet-stream fallback) onto a FileKind.
func ResolveKind(mimeType, originalName string) FileKind {
	mt := normalizeMime(mimeType)

	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	}

	if k, ok := mimeKinds[mt]; ok {
		return k
	}

	// Unknown or generic type: sniff the extension.
	ext := strings.ToLower(filepath.Ext(originalName))
	if k, ok := extKinds[ext]; ok {
		return k
	}
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff":
		return KindImage
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac":
		return KindAudio
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return KindVideo
	}
	return KindUnknown
}

// normalizeMime lowercases the type and strips parameters such as charset.
func normalizeMime(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
