package cookie

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetAppliesDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	Set(rec, "signed-value", Options{HTTPOnly: true, MaxAge: time.Hour})

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultName || c.Value != "signed-value" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if c.Path != "/" {
		t.Fatalf("expected default path /, got %q", c.Path)
	}
	if !c.HttpOnly {
		t.Fatal("expected HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected lax same-site default, got %v", c.SameSite)
	}
	if c.MaxAge != 3600 {
		t.Fatalf("expected max-age 3600, got %d", c.MaxAge)
	}
}

func TestClearExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	Clear(rec, Options{Name: "sid"})

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "sid" || cookies[0].Value != "" || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring sid cookie, got %+v", cookies[0])
	}
}

func TestRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := Read(req, Options{}); !errors.Is(err, ErrCookieMissing) {
		t.Fatalf("expected ErrCookieMissing, got %v", err)
	}

	req.AddCookie(&http.Cookie{Name: DefaultName, Value: "v"})
	got, err := Read(req, Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}
