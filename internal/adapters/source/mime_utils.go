package source

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages it collects text/plain parts; non-UTF-8 parts
// are decoded via their declared charset.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		return readPart(msg.Body, contentType)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readPart(msg.Body, contentType)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return readPart(msg.Body, contentType)
	}

	mr := multipart.NewReader(msg.Body, boundary)

	var textContent bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Return whatever text was collected before the malformed
			// part; partial text still yields a usable word count.
			break
		}

		partContentType := part.Header.Get("Content-Type")
		if strings.Contains(strings.ToLower(partContentType), "text/plain") {
			text, err := readPart(part, partContentType)
			if err != nil {
				continue
			}
			textContent.WriteString(text)
			textContent.WriteString("\n")
		}
		// Nested multiparts and attachments are skipped.
	}

	return textContent.String(), nil
}

// readPart reads a body or part, decoding the declared charset to UTF-8
// when one is present and known.
func readPart(r io.Reader, contentType string) (string, error) {
	if name := partCharset(contentType); name != "" && !isUTF8(name) {
		if enc, err := htmlindex.Get(name); err == nil {
			r = transform.NewReader(r, enc.NewDecoder())
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func partCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func isUTF8(charset string) bool {
	switch charset {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}
