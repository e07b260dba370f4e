// Command cspreport analyzes a browser CSP violation report and suggests a
// remediation: hash allow-listing for a stable inline snippet, nonce tagging
// for dynamic inline content, or an origin allow-list entry for external
// resources.
//
// Usage:
//
//	cspreport report.json
//	curl -s .../violations/123 | cspreport
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/promptexify/promptexify/internal/secutil"
)

// report is the browser's application/csp-report payload.
type report struct {
	Body struct {
		DocumentURI        string `json:"document-uri"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		BlockedURI         string `json:"blocked-uri"`
		ScriptSample       string `json:"script-sample"`
		SourceFile         string `json:"source-file"`
		LineNumber         int    `json:"line-number"`
	} `json:"csp-report"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "cspreport:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var r report
	if err := json.NewDecoder(in).Decode(&r); err != nil {
		return fmt.Errorf("decoding violation report: %w", err)
	}
	b := r.Body
	if b.ViolatedDirective == "" && b.EffectiveDirective == "" {
		return fmt.Errorf("not a CSP violation report (no violated directive)")
	}

	directive := b.EffectiveDirective
	if directive == "" {
		directive = b.ViolatedDirective
	}

	fmt.Fprintf(stdout, "directive: %s\n", directive)
	fmt.Fprintf(stdout, "blocked:   %s\n", b.BlockedURI)
	if b.DocumentURI != "" {
		fmt.Fprintf(stdout, "document:  %s\n", b.DocumentURI)
	}
	if b.SourceFile != "" {
		fmt.Fprintf(stdout, "source:    %s:%d\n", b.SourceFile, b.LineNumber)
	}
	fmt.Fprintf(stdout, "\n%s\n", remediation(directive, b.BlockedURI, b.ScriptSample))
	return nil
}

// remediation classifies the violation and suggests the narrowest fix.
func remediation(directive, blockedURI, sample string) string {
	switch blockedURI {
	case "inline", "":
		if sample != "" {
			// a stable sample can be hash-pinned exactly
			return fmt.Sprintf(
				"inline %s with a captured sample.\n"+
					"If this snippet is static, allow it by hash:\n"+
					"    %s\n"+
					"(recompute with csphash against the exact inline content).\n"+
					"If it changes per render, tag the element with the request nonce instead.",
				directive, secutil.InlineHash([]byte(sample)))
		}
		return fmt.Sprintf(
			"inline %s with no sample captured.\n"+
				"Tag the element with the request nonce, or add 'report-sample' to the\n"+
				"directive to capture snippets for hash allow-listing.",
			directive)
	case "eval":
		return "eval() blocked. Production policy does not allow 'unsafe-eval';\n" +
			"replace the eval call rather than widening the policy."
	case "data":
		return fmt.Sprintf("data: URI blocked by %s. Add data: to the directive only if the\n"+
			"resource class is expected there (fonts, images).", directive)
	}

	if u, err := url.Parse(blockedURI); err == nil && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		return fmt.Sprintf(
			"external resource from %s.\n"+
				"If this third party is intentional, add %s to the %s allow-list\n"+
				"via the matching -csp-*-origin flag. Never add a wildcard.",
			origin, origin, directive)
	}

	return fmt.Sprintf("unrecognized blocked-uri %q; inspect the offending page manually.",
		strings.TrimSpace(blockedURI))
}
