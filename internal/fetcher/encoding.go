package fetcher

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// minDetectConfidence is the chardet confidence below which detection is ignored.
const minDetectConfidence = 50

// Detector guesses the character set of a document.
type Detector interface {
	Detect(body []byte) (label string, confidence int)
}

// ChardetDetector detects encodings with saintfish/chardet's HTML detector.
type ChardetDetector struct{}

// Detect returns the best guess, or an empty label when detection fails.
func (ChardetDetector) Detect(body []byte) (string, int) {
	if len(body) == 0 {
		return "", 0
	}
	res, err := chardet.NewHtmlDetector().DetectBest(body)
	if err != nil || res == nil {
		return "", 0
	}
	return res.Charset, res.Confidence
}

// chardet names that the WHATWG label index spells differently.
var detectorAliases = map[string]string{
	"gb-18030": "gb18030",
}

// lookupEncoding resolves a charset label. The second return value is the canonical name.
func lookupEncoding(label string) (encoding.Encoding, string) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil, ""
	}
	if alias, ok := detectorAliases[label]; ok {
		label = alias
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, ""
	}
	return enc, name
}

// contentTypeCharset returns the charset parameter of a Content-Type header.
func contentTypeCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// ResolveEncoding picks the encoding for body: the override, then the detected
// encoding, then the Content-Type charset, then UTF-8.
func ResolveEncoding(body []byte, override, contentType string, detector Detector) (encoding.Encoding, string) {
	if enc, name := lookupEncoding(override); enc != nil {
		return enc, name
	}
	if detector != nil {
		if label, confidence := detector.Detect(body); confidence >= minDetectConfidence {
			if enc, name := lookupEncoding(label); enc != nil {
				return enc, name
			}
		}
	}
	if enc, name := lookupEncoding(contentTypeCharset(contentType)); enc != nil {
		return enc, name
	}
	return encoding.Nop, "utf-8"
}

// Decode converts body to UTF-8 text using enc.
func Decode(body []byte, enc encoding.Encoding) (string, error) {
	if enc == nil || enc == encoding.Nop {
		return string(body), nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
