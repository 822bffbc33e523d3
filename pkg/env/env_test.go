package env

import "testing"

func TestGetFallsBackWhenBlank(t *testing.T) {
	t.Setenv("NF_TEST_VALUE", "  ")
	if got := Get("NF_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("NF_TEST_VALUE", "console")
	if got := Get("NF_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("NF_TEST_FLAG", "true")
	if !Bool("NF_TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("NF_TEST_FLAG", "nope")
	if Bool("NF_TEST_FLAG", false) {
		t.Fatal("expected fallback for malformed value")
	}
}
