// Package multipart decodes raw multipart/form-data request bodies without
// relying on mime/multipart, using a byte-cursor state machine over the
// buffered body.
package multipart

import (
	"bytes"
	"strings"
)

// Part is one named section of a multipart body. File parts carry a
// Filename and a MimeType; field parts carry only text content.
type Part struct {
	Name     string
	Filename string
	MimeType string
	Content  []byte
}

// IsFile reports whether the part carried a filename attribute
func (p Part) IsFile() bool {
	return p.Filename != ""
}

// Text returns the part content decoded as UTF-8 text
func (p Part) Text() string {
	return string(p.Content)
}

// ExtractBoundary pulls the boundary parameter out of a Content-Type header
// value. It returns "" when the header carries no boundary.
func ExtractBoundary(contentType string) string {
	const param = "boundary="
	idx := strings.Index(contentType, param)
	if idx < 0 {
		return ""
	}
	boundary := contentType[idx+len(param):]
	if semi := strings.IndexByte(boundary, ';'); semi >= 0 {
		boundary = boundary[:semi]
	}
	boundary = strings.TrimSpace(boundary)
	return strings.Trim(boundary, `"`)
}

type parseState int

const (
	stateSeekBoundary parseState = iota
	stateReadHeaders
	stateReadBody
)

var headerSeparator = []byte("\r\n\r\n")

// Parse scans data for parts delimited by "--"+boundary. Spans between
// successive markers are decoded into Parts; a part missing the blank-line
// header separator or the name attribute is dropped. A part with no trailing
// marker before the end of the buffer is terminated at the buffer end. An
// empty boundary or a marker that never occurs yields zero parts.
func Parse(data []byte, boundary string) []Part {
	if boundary == "" || len(data) == 0 {
		return nil
	}

	marker := []byte("--" + boundary)
	var parts []Part

	state := stateSeekBoundary
	cursor := 0
	var headerText string

	for cursor < len(data) {
		switch state {
		case stateSeekBoundary:
			idx := bytes.Index(data[cursor:], marker)
			if idx < 0 {
				return parts
			}
			cursor += idx + len(marker)
			state = stateReadHeaders

		case stateReadHeaders:
			// The headers end at the first blank line. The search is
			// bounded by the next marker so a header-less span (such as
			// the closing "--" after the final marker) is skipped.
			limit := len(data)
			if next := bytes.Index(data[cursor:], marker); next >= 0 {
				limit = cursor + next
			}
			sep := bytes.Index(data[cursor:limit], headerSeparator)
			if sep < 0 {
				cursor = limit
				state = stateSeekBoundary
				continue
			}
			headerText = string(data[cursor : cursor+sep])
			cursor += sep + len(headerSeparator)
			state = stateReadBody

		case stateReadBody:
			end := len(data)
			if next := bytes.Index(data[cursor:], marker); next >= 0 {
				end = cursor + next
			}
			body := data[cursor:end]
			body = bytes.TrimSuffix(body, []byte("\r\n"))

			if part, ok := buildPart(headerText, body); ok {
				parts = append(parts, part)
			}

			cursor = end
			state = stateSeekBoundary
		}
	}

	return parts
}

// buildPart assembles a Part from its header text and body bytes. Parts
// without a name attribute are dropped.
func buildPart(headerText string, body []byte) (Part, bool) {
	name := headerAttr(headerText, "name")
	if name == "" {
		return Part{}, false
	}

	part := Part{
		Name:    name,
		Content: append([]byte(nil), body...),
	}

	if filename := headerAttr(headerText, "filename"); filename != "" {
		part.Filename = filename
		part.MimeType = headerValue(headerText, "Content-Type")
		if part.MimeType == "" {
			part.MimeType = "application/octet-stream"
		}
	}

	return part, true
}

// headerAttr extracts a quoted attribute value such as name="..." from the
// part headers. A match is rejected when the key is the tail of a longer
// attribute (name= inside filename=).
func headerAttr(headers, key string) string {
	needle := key + `="`
	from := 0
	for {
		idx := strings.Index(headers[from:], needle)
		if idx < 0 {
			return ""
		}
		idx += from
		if idx > 0 && isTokenByte(headers[idx-1]) {
			from = idx + len(needle)
			continue
		}
		start := idx + len(needle)
		end := strings.IndexByte(headers[start:], '"')
		if end < 0 {
			return ""
		}
		return headers[start : start+end]
	}
}

// headerValue extracts the value of a header line such as "Content-Type: ..."
func headerValue(headers, key string) string {
	for _, line := range strings.Split(headers, "\r\n") {
		if len(line) <= len(key) || line[len(key)] != ':' {
			continue
		}
		if !strings.EqualFold(line[:len(key)], key) {
			continue
		}
		return strings.TrimSpace(line[len(key)+1:])
	}
	return ""
}

func isTokenByte(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
