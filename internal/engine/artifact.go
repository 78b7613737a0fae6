package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	pdfutil "github.com/dharsanguruparan/MetroCheck/internal/pdf"
)

// ErrUnsupportedArtifact is returned for uploads that are neither listing
// JSON, label text nor label PDF.
var ErrUnsupportedArtifact = errors.New("unsupported artifact type")

const (
	ContentTypeJSON = "application/json"
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// DetectContentType resolves the artifact kind from the declared content
// type, then the file extension, then the leading bytes.
func DetectContentType(declared, fileName string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		switch mt {
		case ContentTypeJSON, ContentTypePDF, ContentTypeText:
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".json":
		return ContentTypeJSON
	case ".pdf":
		return ContentTypePDF
	case ".txt":
		return ContentTypeText
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF-")):
		return ContentTypePDF
	case bytes.HasPrefix(trimmed, []byte("{")), bytes.HasPrefix(trimmed, []byte("[")):
		return ContentTypeJSON
	}
	return ""
}

// DecodeArtifact turns an uploaded artifact into raw extraction records. A
// JSON object yields one record and a JSON array one per element; label text
// and PDFs yield a single record carrying only OCR lines.
func DecodeArtifact(data []byte, contentType string) ([]map[string]any, error) {
	switch contentType {
	case ContentTypeJSON:
		return decodeJSON(data)
	case ContentTypePDF:
		lines, err := pdfutil.ExtractLines(data)
		if err != nil {
			return nil, err
		}
		return []map[string]any{{"raw_ocr_lines": lines}}, nil
	case ContentTypeText:
		return []map[string]any{{"raw_ocr_lines": pdfutil.SplitLines(string(data))}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedArtifact, contentType)
}

func decodeJSON(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode listing json: %w", err)
	}
	switch t := doc.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decode listing json: element %d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("decode listing json: expected an object or an array of objects")
}
