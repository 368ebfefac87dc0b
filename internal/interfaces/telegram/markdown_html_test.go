package telegram

import (
	"strings"
	"testing"
)

func TestMarkdownBoldItalicCode(t *testing.T) {
	got := MarkdownToTelegramHTML("**bold** and *italic* and `code`")
	for _, want := range []string{"<b>bold</b>", "<i>italic</i>", "<code>code</code>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
}

func TestMarkdownHeadingBecomesBold(t *testing.T) {
	got := MarkdownToTelegramHTML("# Release plan")
	if !strings.Contains(got, "<b>Release plan</b>") {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownCodeBlockEscaped(t *testing.T) {
	got := MarkdownToTelegramHTML("```go\nif a < b && c > d {\n}\n```")
	if !strings.Contains(got, `<pre><code class="language-go">`) {
		t.Fatalf("output = %q", got)
	}
	if !strings.Contains(got, "a &lt; b &amp;&amp; c &gt; d") {
		t.Fatalf("code not escaped: %q", got)
	}
}

func TestMarkdownLink(t *testing.T) {
	got := MarkdownToTelegramHTML("[docs](https://example.com)")
	if !strings.Contains(got, `<a href="https://example.com">docs</a>`) {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownListBullets(t *testing.T) {
	got := MarkdownToTelegramHTML("- first\n- second")
	if !strings.Contains(got, "• first") || !strings.Contains(got, "• second") {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownEscapesHTMLInText(t *testing.T) {
	got := MarkdownToTelegramHTML("a < b for all b > 0")
	if strings.Contains(got, "a < b") {
		t.Fatalf("raw angle brackets leaked: %q", got)
	}
	if !strings.Contains(got, "a &lt; b") {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownMultilineCodeBlockKeepsLines(t *testing.T) {
	got := MarkdownToTelegramHTML("```\nfirst line\nsecond line\n```")
	if !strings.Contains(got, "first line\nsecond line") {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownInlineRawHTMLPreserved(t *testing.T) {
	got := MarkdownToTelegramHTML("before <code>x</code> after")
	if !strings.Contains(got, "<code>") || !strings.Contains(got, "</code>") {
		t.Fatalf("output = %q", got)
	}
}

func TestMarkdownEmptyInput(t *testing.T) {
	if got := MarkdownToTelegramHTML(""); got != "" {
		t.Fatalf("output = %q, want empty", got)
	}
}
