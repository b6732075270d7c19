package ingest

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultAllowedTypes is the image allow-list used when none is configured
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// DefaultMaxBytes is the upload size limit used when none is configured
const DefaultMaxBytes int64 = 200000

// urlExtensions are the extensions honoured when taken from a remote URL
var urlExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".svg": true, ".gif": true,
}

// Policy is the accept/reject configuration of an Ingestor
type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
	// RedirectTo is where accepted and tolerated requests are sent
	RedirectTo string
}

func (p Policy) withDefaults() Policy {
	if len(p.AllowedTypes) == 0 {
		p.AllowedTypes = DefaultAllowedTypes
	}
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxBytes
	}
	if p.RedirectTo == "" {
		p.RedirectTo = "/profile"
	}
	return p
}

// Allows reports whether the sniffed type is on the allow-list
func (p Policy) Allows(detected string) bool {
	return mimetype.EqualsAny(detected, p.AllowedTypes...)
}

// sniff detects the content type from the bytes, without parameters
func sniff(data []byte) string {
	detected, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(detected)
}
