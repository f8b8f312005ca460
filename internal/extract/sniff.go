package extract

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind is the extraction family a blob belongs to.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindDOCX  Kind = "docx"
	KindTXT   Kind = "txt"
	KindRTF   Kind = "rtf"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

var rtfMagic = []byte(`{\rtf`)

// DetectKind decides the extraction family from the declared mime type and
// filename extension. An RTF magic prefix overrides both, catching files
// uploaded with the wrong type.
func DetectKind(mimeType, filename string, data []byte) Kind {
	if bytes.HasPrefix(data, rtfMagic) {
		return KindRTF
	}

	mt := strings.ToLower(mimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/pdf":
		return KindPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return KindDOCX
	case "text/plain":
		return KindTXT
	case "text/rtf", "application/rtf":
		return KindRTF
	case "image/jpeg", "image/png", "image/tiff":
		return KindImage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx", ".doc":
		return KindDOCX
	case ".txt", ".md":
		return KindTXT
	case ".rtf":
		return KindRTF
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff":
		return KindImage
	}
	return KindOther
}
