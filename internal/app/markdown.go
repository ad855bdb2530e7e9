package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

type markdownKey struct {
	width int
	dark  bool
}

// markdownRenderers caches glamour renderers; building one parses the whole
// style sheet.
type markdownRenderers struct {
	mu    sync.Mutex
	dark  bool
	cache map[markdownKey]*glamour.TermRenderer
}

var renderers = &markdownRenderers{dark: true, cache: map[markdownKey]*glamour.TermRenderer{}}

func (r *markdownRenderers) setDark(dark bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dark = dark
}

func (r *markdownRenderers) get(width int) *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := markdownKey{width: width, dark: r.dark}
	if renderer, ok := r.cache[key]; ok {
		return renderer
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle(r.dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	r.cache[key] = renderer
	return renderer
}

// renderMarkdown renders assistant text to at most width columns. Rendering
// errors fall back to the raw text.
func renderMarkdown(input string, width int) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	renderer := renderers.get(width)
	if renderer == nil {
		return xansi.Hardwrap(input, width, true)
	}
	out, err := renderer.Render(input)
	if err != nil {
		return xansi.Hardwrap(input, width, true)
	}
	out = xansi.Hardwrap(strings.TrimRight(out, "\n"), width, true)
	return strings.Trim(out, "\n")
}

func markdownStyle(dark bool) glamouransi.StyleConfig {
	base := styles.LightStyleConfig
	if dark {
		base = styles.DarkStyleConfig
	}
	// Message spacing is the transcript's job, not the document's.
	base.Document.StylePrimitive.BlockPrefix = ""
	base.Document.StylePrimitive.BlockSuffix = ""
	zero := uint(0)
	base.Document.Margin = &zero
	faint := true
	grey := "245"
	base.BlockQuote.StylePrimitive.Faint = &faint
	base.BlockQuote.StylePrimitive.Color = &grey
	return base
}

// escapeMarkdown keeps user-typed text literal when it goes through the
// markdown renderer.
func escapeMarkdown(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.ReplaceAll(line, "`", "\\`")
		trimmed := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(trimmed)]
		if startsBlock(trimmed) {
			trimmed = "\\" + trimmed
		}
		lines[i] = indent + trimmed
	}
	return strings.Join(lines, "\n")
}

func startsBlock(line string) bool {
	for _, prefix := range []string{"#", ">", "- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	dot := strings.IndexByte(line, '.')
	if dot <= 0 || dot+1 >= len(line) || line[dot+1] != ' ' {
		return false
	}
	for i := 0; i < dot; i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}
