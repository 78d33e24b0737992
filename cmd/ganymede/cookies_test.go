package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestValidateCookiesValidBundle(t *testing.T) {
	path := writeBundle(t, `{"__Secure-1PSID": "g.a000abc", "__Secure-1PSIDTS": "sidts-xyz"}`)

	if err := validateCookies(cookiesValidateCmd, []string{path}); err != nil {
		t.Fatalf("validateCookies() error = %v, want nil", err)
	}
}

func TestValidateCookiesMissingPrimaryToken(t *testing.T) {
	path := writeBundle(t, `{"NID": "511=abc"}`)

	err := validateCookies(cookiesValidateCmd, []string{path})
	if err == nil {
		t.Fatal("validateCookies() error = nil, want missing token error")
	}
	if !strings.Contains(err.Error(), "__Secure-1PSID") {
		t.Errorf("error %q should name the missing token", err)
	}
}

func TestValidateCookiesMalformedFile(t *testing.T) {
	path := writeBundle(t, `not json`)

	if err := validateCookies(cookiesValidateCmd, []string{path}); err == nil {
		t.Fatal("validateCookies() error = nil, want parse error")
	}
}

func TestValidateCookiesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	if err := validateCookies(cookiesValidateCmd, []string{path}); err == nil {
		t.Fatal("validateCookies() error = nil, want not-found error")
	}
}

func TestCookiesCommandRegistered(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "cookies" {
			found = true
		}
	}
	if !found {
		t.Error("cookies command not registered on root")
	}
}
