package http

import (
	"mime"
	"path"
	"strings"
)

const (
	octetStream = "application/octet-stream"
	textPlain   = "text/plain; charset=utf-8"

	// attachmentThreshold is the size from which every download is an
	// attachment. Smaller octet-stream files are sniffed for UTF-8 text.
	attachmentThreshold = 1 << 20
)

// renderedAsText are types a browser would execute or render as a page.
// They are served as plain text so the server never hosts active content.
var renderedAsText = map[string]bool{
	"text/html":              true,
	"text/xml":               true,
	"application/xml":        true,
	"text/javascript":        true,
	"application/javascript": true,
	"text/css":               true,
	"application/json":       true,
	"image/svg+xml":          true,
	"application/xhtml+xml":  true,
}

// typeByName guesses a content type from the extension of name, falling back
// to application/octet-stream.
func typeByName(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return octetStream
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}

// downloadHeaders applies the serving rules to a guessed content type.
//
// Returns the Content-Type to send and whether the response must carry
// "Content-Disposition: attachment": octet-stream, audio and video always
// do, as does anything of attachmentThreshold bytes or more. A negative size
// means unknown and counts as large.
func downloadHeaders(ct string, size int64) (string, bool) {
	mt := mediaType(ct)
	if renderedAsText[mt] {
		ct, mt = textPlain, "text/plain"
	}

	attachment := mt == octetStream ||
		strings.HasPrefix(mt, "video/") ||
		strings.HasPrefix(mt, "audio/") ||
		size < 0 ||
		size >= attachmentThreshold
	return ct, attachment
}
