package envutil

import "testing"

func TestParseBool(t *testing.T) {
	truthy := []string{"1", "true", "TRUE", " t ", "yes", "Y", "on"}
	for _, value := range truthy {
		if !ParseBool(value) {
			t.Fatalf("expected %q to parse as true", value)
		}
	}
	falsy := []string{"", "0", "false", "off", "nope", "2"}
	for _, value := range falsy {
		if ParseBool(value) {
			t.Fatalf("expected %q to parse as false", value)
		}
	}
}

func TestBool(t *testing.T) {
	t.Setenv("SHEETAGENT_TEST_FLAG", "yes")
	if !Bool("SHEETAGENT_TEST_FLAG") {
		t.Fatalf("expected env flag to be true")
	}
	if Bool("SHEETAGENT_TEST_FLAG_MISSING") {
		t.Fatalf("expected missing env flag to be false")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("SHEETAGENT_TEST_INT", "42")
	if got := Int("SHEETAGENT_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := Int("SHEETAGENT_TEST_INT_MISSING", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	t.Setenv("SHEETAGENT_TEST_INT", "not-a-number")
	if got := Int("SHEETAGENT_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback on bad value, got %d", got)
	}
}
