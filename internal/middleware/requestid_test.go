package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRequestIDKeepsPlainCallerID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	cases := []struct {
		name string
		in   string
		keep bool
	}{
		{"plain", "req-42.a_b", true},
		{"missing", "", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"punctuation", "abc;level=error", false},
		{"spaces", "two words", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		if tc.in != "" {
			req.Header.Set(RequestIDHeader, tc.in)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tc.name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		got := resp.Header.Get(RequestIDHeader)
		if got == "" || got != string(body) {
			t.Fatalf("%s: header %q does not match locals %q", tc.name, got, body)
		}
		if tc.keep != (got == tc.in) {
			t.Fatalf("%s: keep=%v but got %q", tc.name, tc.keep, got)
		}
	}
}
