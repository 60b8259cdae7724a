package gen

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getGoLexer returns a Go lexer with fallbacks
func getGoLexer() chroma.Lexer {
	candidates := []string{"go", "Go"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return lexers.Fallback
}

// getPreviewStyle returns the preview style with fallbacks
func getPreviewStyle() *chroma.Style {
	candidates := []string{"dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("UPD_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Preview returns the generated source highlighted for the terminal, or
// unhighlighted when colors are disabled or highlighting fails.
func Preview(src []byte) string {
	if IsDisabled() {
		return string(src)
	}

	lexer := getGoLexer()
	iterator, err := lexer.Tokenise(nil, string(src))
	if err != nil {
		return string(src)
	}

	var b strings.Builder
	if err := getTerminalFormatter().Format(&b, getPreviewStyle(), iterator); err != nil {
		return string(src)
	}
	return b.String()
}
