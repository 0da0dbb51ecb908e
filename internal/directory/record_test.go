package directory

import "testing"

func TestValidateID(t *testing.T) {
	valid := []string{"a", "a_1", "32chars_-_-_-_-_-_-_-_-_-_-_-_-_"}
	for _, id := range valid {
		if len(id) > 32 {
			t.Fatalf("test fixture %q is %d chars, want <=32", id, len(id))
		}
		if !ValidateID(id) {
			t.Errorf("ValidateID(%q) = false, want true", id)
		}
	}

	invalid := []string{
		"",
		"has space",
		"123456789012345678901234567890123", // 33 chars
		"local",
		"LOCAL",
		"LoCaL",
	}
	for _, id := range invalid {
		if ValidateID(id) {
			t.Errorf("ValidateID(%q) = true, want false", id)
		}
	}
}
