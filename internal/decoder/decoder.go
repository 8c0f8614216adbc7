// Package decoder does MIME-word and charset decoding of headers, walks
// multipart bodies to extract text/html parts and attachment names, and
// renders the result into a canonical HTML document.
package decoder

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"mime"
	mailpkg "net/mail"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"
)

// RawMessage is the input shape: a raw RFC 822 header set plus body.
type RawMessage struct {
	Subject string
	From    string
	To      string
	Date    string
	Body    []byte // raw message body, as returned by BODY.PEEK[]
}

// Body is the decoded body shape produced by Decode.
type Body struct {
	TextBody        string
	HTMLBody        string
	AttachmentNames []string
}

// Decoded is the fully decoded message: MIME-word-decoded headers plus
// a decoded Body.
type Decoded struct {
	Subject string
	From    string
	To      string
	Date    string
	Body    Body
}

var senderRe = regexp.MustCompile(`[\w.\-]+@[\w.\-]+`)

// ExtractSender MIME-decodes a raw From header and returns the first
// regex-matched address, or "" if none is found. Used for the whitelist
// gate before the full body is ever fetched.
func ExtractSender(rawFrom string) string {
	decoded := DecodeMIMEString(rawFrom)
	return senderRe.FindString(decoded)
}

// DecodeMIMEString decodes RFC 2047 encoded-words, concatenating each
// chunk using its declared charset (ASCII when absent).
func DecodeMIMEString(s string) string {
	if s == "" {
		return s
	}
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// EncodeMIMEString is the inverse of DecodeMIMEString: decoding the result
// recovers s (modulo whitespace). Non-ASCII input is RFC 2047 B-encoded as
// UTF-8.
func EncodeMIMEString(s string) string {
	if isASCII(s) {
		return s
	}
	return mime.BEncoding.Encode("utf-8", s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// decodeAddressHeader decodes a "Display Name <addr>" header, preserving
// the split: the display-name half is MIME-decoded, the address half is
// passed through unchanged.
func decodeAddressHeader(raw string) string {
	if raw == "" {
		return raw
	}
	addr, err := mailpkg.ParseAddress(raw)
	if err != nil {
		return DecodeMIMEString(raw)
	}
	name := addr.Name
	if name == "" {
		return addr.Address
	}
	name = DecodeMIMEString(name)
	if strings.EqualFold(name, addr.Address) {
		return addr.Address
	}
	return fmt.Sprintf("%s <%s>", name, addr.Address)
}

// Decode turns a raw fetched message into its decoded header and body form.
func Decode(raw RawMessage) (Decoded, error) {
	out := Decoded{
		Subject: DecodeMIMEString(raw.Subject),
		From:    decodeAddressHeader(raw.From),
		To:      decodeAddressHeader(raw.To),
		Date:    raw.Date,
	}
	body, err := decodeBody(raw.Body)
	if err != nil {
		return out, err
	}
	out.Body = body
	return out, nil
}

// decodeBody parses the full RFC 822 body and extracts text/html parts and
// attachment filenames, handling both multipart and non-multipart bodies.
func decodeBody(raw []byte) (Body, error) {
	msg, err := mailpkg.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Body{}, fmt.Errorf("read message: %w", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		b, _ := io.ReadAll(msg.Body)
		return finalize(string(b), ""), nil
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		b, _ := io.ReadAll(msg.Body)
		text := string(b)
		if strings.HasPrefix(mediaType, "text/html") {
			return finalize("", text), nil
		}
		return finalize(text, ""), nil
	}

	mr := textproto.NewMultipartReader(msg.Body, params["boundary"])
	var textBody, htmlBody string
	var attachments []string
	seen := map[string]struct{}{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Body{}, fmt.Errorf("multipart: %w", err)
		}
		ct := p.Header.Get("Content-Type")
		disp, dispParams := parseDisposition(p.Header.Get("Content-Disposition"))

		if disp == "attachment" {
			name := firstNonEmpty(dispParams["filename"], paramFromContentType(ct, "name"))
			if name != "" {
				decodedName := strings.TrimSpace(DecodeMIMEString(name))
				if decodedName == "" {
					decodedName = name
				}
				if _, dup := seen[decodedName]; !dup {
					seen[decodedName] = struct{}{}
					attachments = append(attachments, decodedName)
				}
			}
			continue
		}

		if strings.HasPrefix(ct, "text/html") && htmlBody == "" {
			b, _ := io.ReadAll(p)
			htmlBody = string(b)
		}
		if strings.HasPrefix(ct, "text/plain") && textBody == "" {
			b, _ := io.ReadAll(p)
			textBody = string(b)
		}
	}
	out := finalize(textBody, htmlBody)
	out.AttachmentNames = attachments
	return out, nil
}

// finalize derives a plain-text body by stripping tags when only an HTML
// part was present.
func finalize(text, html string) Body {
	if text == "" && html != "" {
		text = stripTags(html)
	}
	return Body{TextBody: text, HTMLBody: html}
}

var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)

func stripTags(html string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(html, " "))
}

// PlainText strips HTML tags from an already-rendered document, used by the
// rasterizer to lay out text on the rendering canvas.
func PlainText(html string) string { return stripTags(html) }

func paramFromContentType(ct, key string) string {
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return params[key]
}

func parseDisposition(raw string) (string, map[string]string) {
	if raw == "" {
		return "", nil
	}
	disp, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", nil
	}
	return strings.ToLower(disp), params
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// htmlDocTemplate renders a header block with Subject/From/To/Date, the
// inlined HTML body, and attachment names as a bullet list.
var htmlDocTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<div class="header">
<div><strong>Subject:</strong> {{.Subject}}</div>
<div><strong>From:</strong> {{.From}}</div>
<div><strong>To:</strong> {{.To}}</div>
<div><strong>Date:</strong> {{.Date}}</div>
</div>
<hr>
<div class="body">{{.HTMLContent}}</div>
{{if .Attachments}}
<hr>
<ul class="attachments">
{{range .Attachments}}<li>{{.}}</li>
{{end}}
</ul>
{{end}}
</body>
</html>
`))

type renderData struct {
	Subject, From, To, Date string
	HTMLContent             template.HTML
	Attachments             []string
}

// RenderHTML renders a Decoded message into the canonical HTML document
// the rasterizer draws from. HTMLBody is inlined verbatim; the target is a
// rasterizer, not a browser DOM, so there is no script execution context.
func RenderHTML(d Decoded) (string, error) {
	htmlContent := d.Body.HTMLBody
	if htmlContent == "" {
		htmlContent = template.HTMLEscapeString(d.Body.TextBody)
	}
	var buf bytes.Buffer
	err := htmlDocTemplate.Execute(&buf, renderData{
		Subject:     d.Subject,
		From:        d.From,
		To:          d.To,
		Date:        d.Date,
		HTMLContent: template.HTML(htmlContent),
		Attachments: d.Body.AttachmentNames,
	})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
