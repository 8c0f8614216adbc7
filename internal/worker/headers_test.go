package worker

import "testing"

func TestParseHeaderFields(t *testing.T) {
	raw := "Subject: Hello\r\nFrom: \"A\" <a@b.c>\r\nTo: dest@x.y\r\n\r\n"
	hdr, err := parseHeaderFields([]byte(raw))
	if err != nil {
		t.Fatalf("parseHeaderFields: %v", err)
	}
	if hdr["Subject"] != "Hello" {
		t.Errorf("Subject = %q, want %q", hdr["Subject"], "Hello")
	}
	if hdr["From"] != `"A" <a@b.c>` {
		t.Errorf("From = %q", hdr["From"])
	}
	if hdr["To"] != "dest@x.y" {
		t.Errorf("To = %q", hdr["To"])
	}
}

func TestParseHeaderFieldsWithoutTrailingBlankLine(t *testing.T) {
	raw := "Subject: Hi\r\n"
	hdr, err := parseHeaderFields([]byte(raw))
	if err != nil {
		t.Fatalf("parseHeaderFields: %v", err)
	}
	if hdr["Subject"] != "Hi" {
		t.Errorf("Subject = %q, want %q", hdr["Subject"], "Hi")
	}
}
