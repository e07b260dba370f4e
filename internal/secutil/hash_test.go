package secutil

import (
	"strings"
	"testing"
)

func TestInlineHash_KnownValue(t *testing.T) {
	// sha256("alert(1)") base64
	got := InlineHash([]byte("alert(1)"))
	if !strings.HasPrefix(got, "'sha256-") || !strings.HasSuffix(got, "='") {
		t.Fatalf("InlineHash format = %q", got)
	}
	// identical content must hash identically, whitespace matters
	if InlineHash([]byte("alert(1)")) != got {
		t.Fatal("InlineHash not deterministic")
	}
	if InlineHash([]byte(" alert(1)")) == got {
		t.Fatal("InlineHash ignored leading whitespace")
	}
}

func TestSHA256Hex(t *testing.T) {
	// well-known digest of the empty string
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != empty {
		t.Fatalf("SHA256Hex(nil) = %q, want %q", got, empty)
	}
}
