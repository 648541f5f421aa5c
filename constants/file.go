package constants

import "bytes"

// Format is the detected document format of uploaded bytes.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// Formats holds the allowed document formats for verification jobs.
var Formats = []string{string(PDF), string(IMAGE)}

var (
	pdfMagic  = []byte("%PDF")
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// DetectFormat sniffs the document format from leading bytes.
// Returns "" when the byte stream is not a recognized document type.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return PDF
	case bytes.HasPrefix(data, pngMagic), bytes.HasPrefix(data, jpegMagic):
		return IMAGE
	default:
		return ""
	}
}

// ImageExt returns the cache file extension for recognized image bytes.
func ImageExt(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return ".png"
	}
	return ".jpg"
}
