package handler

import (
	"testing"

	"github.com/andestours/experience-booking/internal/utils"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GUIDE", "GUIDE"},
		{"guide", "GUIDE"},
		{"  Guide  ", "GUIDE"},
		{"TOURIST", "TOURIST"},
		{"", "TOURIST"},
		{"ADMIN", "TOURIST"}, // never self-assignable
		{"owner", "TOURIST"},
	}
	for _, tc := range tests {
		if got := normalizeRole(tc.in); got != tc.want {
			t.Errorf("normalizeRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBearerSubject(t *testing.T) {
	const secret = "test-secret"
	access, err := utils.NewAccessToken(secret, 42, "TOURIST", 5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if got := bearerSubject("Bearer "+access.Token, secret); got != 42 {
		t.Fatalf("subject = %d, want 42", got)
	}
	if got := bearerSubject("Bearer "+access.Token, "other-secret"); got != 0 {
		t.Fatalf("wrong secret: subject = %d, want 0", got)
	}
	if got := bearerSubject("", secret); got != 0 {
		t.Fatalf("missing header: subject = %d, want 0", got)
	}
	if got := bearerSubject("Basic dXNlcjpwYXNz", secret); got != 0 {
		t.Fatalf("non-bearer scheme: subject = %d, want 0", got)
	}
}
