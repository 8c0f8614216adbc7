package kv

import "testing"

func TestTemplateInterpolate(t *testing.T) {
	got := TplImapStatus.Interpolate(map[string]string{"user": "42", "box": "7"})
	want := "imap_client_status_42_7"
	if got != want {
		t.Fatalf("Interpolate = %q, want %q", got, want)
	}
}

func TestFailedListKeys(t *testing.T) {
	if got, want := FailedEmailsKey(42), "telegram_id_42_failed_emails"; got != want {
		t.Fatalf("FailedEmailsKey = %q, want %q", got, want)
	}
	if got, want := FailedPhotosKey(42), "telegram_id_42_failed_photos"; got != want {
		t.Fatalf("FailedPhotosKey = %q, want %q", got, want)
	}
}
