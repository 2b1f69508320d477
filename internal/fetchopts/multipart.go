package fetchopts

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/roach88/gqlcache/internal/gql"
)

// Field is one multipart form field. File is nil for plain text fields.
type Field struct {
	Name  string
	Value string
	File  *gql.File
}

// MultipartForm is an ordered multipart form body.
type MultipartForm struct {
	fields []Field
}

func (*MultipartForm) body() {}

// Append adds a text field.
func (f *MultipartForm) Append(name, value string) {
	f.fields = append(f.fields, Field{Name: name, Value: value})
}

// AppendFile adds a file field.
func (f *MultipartForm) AppendFile(name string, file *gql.File) {
	f.fields = append(f.fields, Field{Name: name, File: file})
}

// Fields returns the fields in insertion order.
func (f *MultipartForm) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// Get returns the first field with the given name.
func (f *MultipartForm) Get(name string) (Field, bool) {
	for _, field := range f.fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Encode writes the form in multipart/form-data wire format and returns the
// matching Content-Type. An empty boundary selects a random one.
func (f *MultipartForm) Encode(w io.Writer, boundary string) (string, error) {
	mw := multipart.NewWriter(w)
	if boundary != "" {
		if err := mw.SetBoundary(boundary); err != nil {
			return "", fmt.Errorf("set multipart boundary: %w", err)
		}
	}

	for _, field := range f.fields {
		if field.File == nil {
			if err := mw.WriteField(field.Name, field.Value); err != nil {
				return "", fmt.Errorf("write field %q: %w", field.Name, err)
			}
			continue
		}

		contentType := field.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(field.Name), escapeQuotes(field.File.Name)))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", fmt.Errorf("create file part %q: %w", field.Name, err)
		}
		if _, err := part.Write(field.File.Data); err != nil {
			return "", fmt.Errorf("write file part %q: %w", field.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}
	return mw.FormDataContentType(), nil
}

// Bytes encodes the form into memory.
func (f *MultipartForm) Bytes(boundary string) ([]byte, string, error) {
	var buf bytes.Buffer
	contentType, err := f.Encode(&buf, boundary)
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
