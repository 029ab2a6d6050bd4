package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\n--\s*\n.*`),
		regexp.MustCompile(`(?is)Sent from my iPhone.*`),
		regexp.MustCompile(`(?is)Get Outlook for.*`),
	}
)

// TextProcessor provides utilities for normalizing email text and
// addresses before analysis.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// ExtractAddress normalizes an address header value to a bare lowercase
// email address, handling the "Display Name <user@example.com>" form.
func ExtractAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(value); err == nil {
		return strings.ToLower(addr.Address)
	}
	// Fall back to stripping angle brackets by hand for headers the
	// stdlib parser rejects.
	if start := strings.LastIndex(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(value[start+1 : start+end]))
		}
	}
	return strings.ToLower(value)
}

// ExtractAddressList splits a comma-separated address header and
// normalizes each entry, dropping empty results.
func ExtractAddressList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var addrs []string
	if parsed, err := mail.ParseAddressList(value); err == nil {
		for _, a := range parsed {
			addrs = append(addrs, strings.ToLower(a.Address))
		}
		return addrs
	}
	for _, part := range strings.Split(value, ",") {
		if addr := ExtractAddress(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// CleanText strips HTML tags, collapses whitespace and trims common
// signature blocks so word counts and sentiment reflect the message
// itself.
func (tp *TextProcessor) CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = htmlTagPattern.ReplaceAllString(text, " ")
	for _, p := range signaturePatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WordCount returns the number of words in the cleaned text.
func (tp *TextProcessor) WordCount(text string) int {
	clean := tp.CleanText(text)
	if clean == "" {
		return 0
	}
	return len(strings.Fields(clean))
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	// If no limit or text is already within limits, return as is
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	// First truncate to the byte limit
	truncated := text[:maxSize]

	// Ensure the truncated text ends with a valid UTF-8 sequence
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		// Remove bytes until we have valid UTF-8
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8, dropping
// any invalid byte sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				// Skip invalid UTF-8 sequences
				continue
			}
		}
		result = append(result, r)
	}

	return string(result)
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	// First truncate
	truncated := tp.TruncateText(text, maxSize)

	// Then sanitize
	sanitized := tp.SanitizeUTF8(truncated)

	return sanitized
}
