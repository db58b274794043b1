package document

import (
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/scanport/pkg/export/encoders"
)

func TestHTMLRenderer_Render(t *testing.T) {
	r := &HTMLRenderer{Location: time.UTC}

	out, err := r.Render(context.Background(), encoders.Document{
		Title:       "Scan Export",
		Headers:     []string{"id", "data"},
		Rows:        [][]string{{"1", "hello"}, {"2", "<script>x</script>"}},
		GeneratedAt: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.MIMEType != "text/html" || out.Extension != ".html" {
		t.Errorf("unexpected output type: %s %s", out.MIMEType, out.Extension)
	}

	html := string(out.Content)
	for _, want := range []string{
		"<title>Scan Export</title>",
		"Generated 1/15/2025, 10:30:00 AM &middot; 2 items",
		"<tr><th>id</th><th>data</th></tr>",
		"<tr><td>1</td><td>hello</td></tr>",
		"&lt;script&gt;x&lt;/script&gt;",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("cell content not escaped")
	}
}

func TestHTMLRenderer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewHTMLRenderer().Render(ctx, encoders.Document{}); err == nil {
		t.Error("Render() with cancelled context should fail")
	}
}
