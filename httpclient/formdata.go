package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormData builds a multipart/form-data body. Parts are written in the order they are added.
type FormData struct {
	parts []formPart
}

type formPart struct {
	name        string
	value       string
	filename    string
	content     io.Reader
	contentType string
}

// NewFormData returns an empty form.
func NewFormData() *FormData {
	return &FormData{}
}

// AddField appends a plain text field.
func (f *FormData) AddField(name, value string) *FormData {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a file part. contentType defaults to application/octet-stream.
func (f *FormData) AddFile(name, filename string, content io.Reader, contentType string) *FormData {
	f.parts = append(f.parts, formPart{name: name, filename: filename, content: content, contentType: contentType})
	return f
}

// Len returns the number of parts.
func (f *FormData) Len() int {
	return len(f.parts)
}

// Encode writes the form into memory and returns the body with its Content-Type.
// File readers are consumed.
func (f *FormData) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range f.parts {
		if p.content == nil {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", fmt.Errorf("write field %q: %w", p.name, err)
			}
			continue
		}

		ct := p.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.name), escapeQuotes(p.filename)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %q: %w", p.name, err)
		}
		if _, err := io.Copy(part, p.content); err != nil {
			return nil, "", fmt.Errorf("copy part %q: %w", p.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
