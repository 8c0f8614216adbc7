package decoder

import (
	"bytes"
	"mime"
	"strings"
	"testing"
)

func buildMultipartRaw(subjectEncoded, from string) []byte {
	boundary := "BOUNDARY123"
	var buf bytes.Buffer
	buf.WriteString("Subject: " + subjectEncoded + "\r\n")
	buf.WriteString("From: " + from + "\r\n")
	buf.WriteString("Date: Mon, 28 Sep 2025 12:00:00 +0800\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString("hello plain body\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	buf.WriteString("<html><body><p>hello <b>html</b> body</p></body></html>\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/pdf; name=\"report.pdf\"\r\n")
	buf.WriteString("Content-Disposition: attachment; filename=\"report.pdf\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	buf.WriteString("JVBERi0xLjQK\r\n")
	buf.WriteString("--" + boundary + "--\r\n")
	return buf.Bytes()
}

func TestDecodeMultipartWithAttachment(t *testing.T) {
	encSubj := mime.BEncoding.Encode("utf-8", "测试主题")
	raw := buildMultipartRaw(encSubj, `"A" <a@b.c>`)
	d, err := Decode(RawMessage{Subject: encSubj, From: `"A" <a@b.c>`, Date: "x", Body: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Subject != "测试主题" {
		t.Errorf("subject = %q, want 测试主题", d.Subject)
	}
	if d.From != "A <a@b.c>" {
		t.Errorf("from = %q, want %q", d.From, "A <a@b.c>")
	}
	if !strings.Contains(d.Body.TextBody, "hello plain body") {
		t.Errorf("text body missing plain content: %q", d.Body.TextBody)
	}
	if !strings.Contains(d.Body.HTMLBody, "<b>html</b>") {
		t.Errorf("html body missing: %q", d.Body.HTMLBody)
	}
	if len(d.Body.AttachmentNames) != 1 || d.Body.AttachmentNames[0] != "report.pdf" {
		t.Errorf("attachments = %v, want [report.pdf]", d.Body.AttachmentNames)
	}
}

func TestDecodeNonMultipartPlain(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("Subject: plain\r\nFrom: t@example.com\r\nDate: x\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString("just text\r\n")
	d, err := Decode(RawMessage{Subject: "plain", From: "t@example.com", Date: "x", Body: buf.Bytes()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !strings.Contains(d.Body.TextBody, "just text") {
		t.Errorf("text body = %q", d.Body.TextBody)
	}
	if d.Body.HTMLBody != "" {
		t.Errorf("html body should be empty, got %q", d.Body.HTMLBody)
	}
}

func TestDecodeHTMLOnlyDerivesTextBody(t *testing.T) {
	boundary := "B1"
	var buf bytes.Buffer
	buf.WriteString("Subject: s\r\nFrom: t@example.com\r\nDate: x\r\n")
	buf.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	buf.WriteString("<p>Only HTML here</p>\r\n")
	buf.WriteString("--" + boundary + "--\r\n")

	d, err := Decode(RawMessage{Subject: "s", From: "t@example.com", Date: "x", Body: buf.Bytes()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Body.HTMLBody == "" {
		t.Fatalf("expected html body to be set")
	}
	if !strings.Contains(d.Body.TextBody, "Only HTML here") {
		t.Errorf("expected text body derived by tag-stripping, got %q", d.Body.TextBody)
	}
}

func TestExtractSender(t *testing.T) {
	cases := map[string]string{
		`"A" <a@b.c>`:       "a@b.c",
		"plain@example.com": "plain@example.com",
	}
	for raw, want := range cases {
		if got := ExtractSender(raw); got != want {
			t.Errorf("ExtractSender(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestMIMEStringRoundTrip(t *testing.T) {
	for _, s := range []string{"hello world", "测试主题", "café"} {
		enc := EncodeMIMEString(s)
		dec := DecodeMIMEString(enc)
		if strings.TrimSpace(dec) != strings.TrimSpace(s) {
			t.Errorf("round trip %q -> %q -> %q", s, enc, dec)
		}
	}
}

func TestRenderHTMLIncludesAttachmentsAndHeader(t *testing.T) {
	d := Decoded{
		Subject: "Hi",
		From:    "a@b.c",
		To:      "me@x.y",
		Date:    "today",
		Body: Body{
			HTMLBody:        "<p>content</p>",
			AttachmentNames: []string{"a.pdf", "b.png"},
		},
	}
	out, err := RenderHTML(d)
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{"Hi", "a@b.c", "me@x.y", "today", "content", "a.pdf", "b.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered html missing %q:\n%s", want, out)
		}
	}
}
