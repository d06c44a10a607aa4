package filtergraph

import "strings"

// A drawtext text value is unescaped three times by ffmpeg: once by the graph
// parser (terminators [ ] , ;), once by the filter option parser (separator :),
// and once by drawtext's own expansion (% starts an expansion). All three
// levels drop a backslash and keep the character after it, and none of them
// honours a backslash inside single quotes, so every level escapes with
// backslashes only.

// drawtextEscaper protects the text from drawtext expansion.
var drawtextEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`)

// optionEscaper protects a value from the option parser.
var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

// graphEscaper protects a value from the graph parser. The replacer makes a
// single pass, so backslashes added here are never escaped again. '"' and ':'
// are not graph terminators; escaping them keeps every quote and colon in the
// graph text behind an odd run of backslashes.
var graphEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`:`, `\:`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

// EscapeText escapes subtitle text as a drawtext text value ready to be
// placed after "text=" in a filter graph. Line breaks are kept; drawtext
// renders them as new lines.
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return escapeValue(drawtextEscaper.Replace(text))
}

// escapeValue escapes an option value for both parser levels.
func escapeValue(value string) string {
	option := protectEdges(optionEscaper.Replace(value))
	return protectEdges(graphEscaper.Replace(option))
}

// protectEdges escapes leading and trailing whitespace, which both parsers
// trim from a token.
func protectEdges(value string) string {
	trimmed := strings.TrimLeft(value, " \t\n\r")
	lead := value[:len(value)-len(trimmed)]
	core := strings.TrimRight(trimmed, " \t\n\r")
	trail := trimmed[len(core):]
	var b strings.Builder
	for _, c := range lead {
		b.WriteByte('\\')
		b.WriteRune(c)
	}
	b.WriteString(core)
	for _, c := range trail {
		b.WriteByte('\\')
		b.WriteRune(c)
	}
	return b.String()
}
