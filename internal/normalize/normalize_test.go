package normalize

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraph then list",
			in:   `<p>Line one</p><ul><li>Item A</li><li>Item B</li></ul>`,
			want: "Line one\n\n• Item A\n• Item B",
		},
		{
			name: "scripts and styles removed",
			in:   `<p>Hello</p><script>alert(1)</script><style>p { color: red }</style><!-- note -->`,
			want: "Hello",
		},
		{
			name: "link keeps address",
			in:   `<p>Apply <a href="https://jobs.example.com/apply">here</a> today</p>`,
			want: "Apply here (https://jobs.example.com/apply) today",
		},
		{
			name: "link without text becomes address",
			in:   `<p><a href="https://jobs.example.com"></a></p>`,
			want: "https://jobs.example.com",
		},
		{
			name: "nested list is indented",
			in:   `<ul><li>A<ul><li>B</li></ul></li><li>C</li></ul>`,
			want: "• A\n  • B\n• C",
		},
		{
			name: "list item content in paragraphs stays on the bullet line",
			in:   `<ul><li><p>First</p></li><li><p>Second</p></li></ul>`,
			want: "• First\n• Second",
		},
		{
			name: "sibling divs break lines",
			in:   `<div>Hello</div><div>World</div>`,
			want: "Hello\nWorld",
		},
		{
			name: "inline span collapses",
			in:   `<p>Hello <span>big</span> world</p>`,
			want: "Hello big world",
		},
		{
			name: "source newlines are whitespace",
			in:   "<p>Hello\n    world</p>",
			want: "Hello world",
		},
		{
			name: "blank lines limited to one",
			in:   `<p>One</p><br><br><br><p>Two</p>`,
			want: "One\n\nTwo",
		},
		{
			name: "header phrase gets a blank line",
			in:   `<p>Great team. Job Summary: build things.</p>`,
			want: "Great team.\n\nJob Summary: build things.",
		},
		{
			name: "header phrase already separated",
			in:   `<p>Intro</p><p>Job Summary</p>`,
			want: "Intro\n\nJob Summary",
		},
		{
			name: "residual entities decoded",
			in:   `<p>Salary &amp;amp; benefits</p>`,
			want: "Salary & benefits",
		},
		{
			name: "plain text passes through",
			in:   "no markup at all",
			want: "no markup at all",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   " \n\t ",
			want: "",
		},
	}

	n := New(ModeText, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestNormalizeTextMalformed(t *testing.T) {
	n := New(ModeText, nil)
	got, degraded := n.NormalizeChecked(`<p>Unclosed <b>bold<ul><li>x`)
	if degraded {
		t.Error("expected the structural path, got fallback")
	}
	for _, want := range []string{"Unclosed bold", "• x"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestNormalizeTextOneBulletPerItem(t *testing.T) {
	inputs := []string{
		`<ul><li>a</li><li>b</li><li>c</li></ul>`,
		`<p>intro</p><ol><li>one<ol><li>two</li><li>three</li></ol></li></ol><p>outro</p>`,
		`<div><ul><li><span>x</span> y</li></ul><div><ul><li>z</li></ul></div></div>`,
		`text<ul><li>inline start</li></ul>more text`,
	}

	n := New(ModeText, []string{})
	for _, in := range inputs {
		items := strings.Count(in, "<li>")
		got := n.Normalize(in)

		bullets := 0
		for _, line := range strings.Split(got, "\n") {
			if strings.HasPrefix(strings.TrimLeft(line, " "), "• ") {
				bullets++
			}
		}
		if bullets != items {
			t.Errorf("Normalize(%q) = %q: %d bullet lines, want %d", in, got, bullets, items)
		}
	}
}

func TestNormalizeTextDeepNesting(t *testing.T) {
	n := New(ModeText, nil)
	for _, depth := range []int{50, 300} {
		in := strings.Repeat("<ul><li>x", depth)
		got, _ := n.NormalizeChecked(in)
		if bullets := strings.Count(got, "•"); bullets != depth {
			t.Errorf("depth %d: got %d bullets, want %d", depth, bullets, depth)
		}
	}
}

func TestNormalizeTextKeepsIndentationPrivate(t *testing.T) {
	n := New(ModeText, nil)
	in := "<p>a\uE000b &#xE000;c</p><ul><li>top<ul><li>nested</li></ul></li></ul>"
	want := "ab c\n\n• top\n  • nested"
	if got := n.Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	in := `<div class="desc"><h2>About</h2><p>We <b>build</b> things.</p><ul><li>Go</li><li>SQL<ul><li>SQLite</li></ul></li></ul><a href="/apply">Apply</a></div>`
	for _, mode := range []Mode{ModeText, ModeMarkup} {
		n := New(mode, nil)
		first := n.Normalize(in)
		for i := 0; i < 5; i++ {
			if got := n.Normalize(in); got != first {
				t.Fatalf("%v: run %d differs:\n%q\n%q", mode, i, first, got)
			}
		}
	}
}

func TestNormalizeMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "attributes and wrappers removed",
			in:   `<div class="x"><p style="color:red">Hi <span>there</span></p><script>x()</script></div>`,
			want: `<p>Hi there</p>`,
		},
		{
			name: "link keeps permitted attributes",
			in:   `<a href="https://jobs.example.com" onclick="evil()" target="_blank" class="c">Apply</a>`,
			want: `<a href="https://jobs.example.com" target="_blank">Apply</a>`,
		},
		{
			name: "script scheme dropped",
			in:   `<a href="javascript:alert(1)">x</a>`,
			want: `<a>x</a>`,
		},
		{
			name: "line breaks folded",
			in:   "<ul>\n<li>A</li>\n<li>B</li>\n</ul>",
			want: `<ul> <li>A</li> <li>B</li> </ul>`,
		},
		{
			name: "heading becomes bold paragraph",
			in:   `<h2>Benefits</h2>`,
			want: `<p><strong>Benefits</strong></p>`,
		},
		{
			name: "text stays escaped",
			in:   `<p>5 &lt; 6 &amp; 7</p>`,
			want: `<p>5 &lt; 6 &amp; 7</p>`,
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	n := New(ModeMarkup, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeMarkupAllowList(t *testing.T) {
	in := `<html><head><title>t</title></head><body>
<table><tr><td><font color="red">Pay</font></td><td>$$$</td></tr></table>
<section><h3 id="q">Qualifications</h3><ol><li><em>Go</em></li><li><i>SQL</i></li></ol></section>
<img src="x.png"><iframe src="https://evil.example"></iframe>
<a href="https://jobs.example.com" rel="noopener" data-id="1">Apply</a>
</body></html>`

	got := New(ModeMarkup, nil).Normalize(in)
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("output has line breaks: %q", got)
	}

	doc, err := html.Parse(strings.NewReader(got))
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	wrapper := map[string]bool{"html": true, "head": true, "body": true}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && !wrapper[n.Data] {
			if !allowedMarkup[n.DataAtom] {
				t.Errorf("element <%s> not in allow-list: %q", n.Data, got)
			}
			for _, a := range n.Attr {
				if n.Data != "a" || (a.Key != "href" && a.Key != "target" && a.Key != "rel") {
					t.Errorf("attribute %s on <%s> not permitted: %q", a.Key, n.Data, got)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, want := range []string{"Pay", "$$$", "Qualifications", "<em>Go</em>", `rel="noopener"`} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestFallback(t *testing.T) {
	if got, want := fallbackText(`<p>a &amp; b</p><br>c`), "a & b c"; got != want {
		t.Errorf("fallbackText = %q, want %q", got, want)
	}

	if got, want := fallbackText("<p>Intro</p><ul>\n<li>one</li><LI class=x>two</LI></ul>"), "Intro\n• one\n• two"; got != want {
		t.Errorf("fallbackText = %q, want %q", got, want)
	}

	n := New(ModeMarkup, nil)
	if got, want := n.fallback(`<p>1 &lt; 2</p>`), "1 &lt; 2"; got != want {
		t.Errorf("markup fallback = %q, want %q", got, want)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"text", ModeText, false},
		{"", ModeText, false},
		{"Markup", ModeMarkup, false},
		{"html", ModeMarkup, false},
		{"pdf", ModeText, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEmphasizeHeaders(t *testing.T) {
	got := emphasizeHeaders("Schedule: full time. Schedule: remote", []string{"Schedule:"})
	want := "Schedule: full time. \n\nSchedule: remote"
	if got != want {
		t.Errorf("emphasizeHeaders = %q, want %q", got, want)
	}
}
