package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_Stdin(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, strings.NewReader("console.log('hi')"), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(out.String())
	if !strings.HasPrefix(got, "'sha256-") || !strings.HasSuffix(got, "'") {
		t.Fatalf("output %q is not a CSP hash source expression", got)
	}
}

func TestRun_StableAcrossRuns(t *testing.T) {
	var a, b bytes.Buffer
	run(nil, strings.NewReader("x"), &a)
	run(nil, strings.NewReader("x"), &b)
	if a.String() != b.String() {
		t.Fatal("same input hashed differently")
	}

	var c bytes.Buffer
	run(nil, strings.NewReader("x "), &c)
	if c.String() == a.String() {
		t.Fatal("whitespace change did not change the hash")
	}
}

func TestRun_MissingFile(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"/no/such/file.js"}, strings.NewReader(""), &out); err == nil {
		t.Fatal("missing file did not error")
	}
}
