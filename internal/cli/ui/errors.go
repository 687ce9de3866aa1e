package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a rendered message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a structured CLI diagnostic
type Message struct {
	Level        Level
	Context      string
	Problem      string
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

func palette(level Level, noColor bool) (header, body *color.Color, symbol string) {
	switch level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠️"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ️"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "❌"
	}
	if noColor {
		header.DisableColor()
		body.DisableColor()
	}
	return header, body, symbol
}

// Format renders the message.
//
// Example output:
//
//	❌ UNKNOWN ENTITY: Ordr
//	   No entity named 'Ordr' is declared.
//
//	   Did you mean: Order?
//
//	   → List entities: conduit-meta describe
func (m Message) Format() string {
	var b strings.Builder
	header, body, symbol := palette(m.Level, m.NoColor)

	if m.Context != "" {
		header.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(m.Context))
	}
	if m.Problem != "" {
		if m.Context == "" {
			header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
		} else {
			body.Fprintf(&b, "   %s\n", m.Problem)
		}
	}
	for _, detail := range m.Details {
		body.Fprintf(&b, "   • %s\n", detail)
	}

	if len(m.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if m.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.HelpCommands) > 0 {
		cyan := color.New(color.FgCyan)
		if m.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, cmd := range m.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// Write writes the formatted message
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success renders a success line
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// UnknownEntity describes a class name missing from the registry
func UnknownEntity(name string, known []string, noColor bool) Message {
	return Message{
		Level:        LevelError,
		Context:      "unknown entity: " + name,
		Problem:      fmt.Sprintf("No entity named '%s' is declared.", name),
		Suggestions:  Suggest(name, known),
		HelpCommands: []string{"List entities: conduit-meta describe"},
		NoColor:      noColor,
	}
}

// UnknownPlan describes a fetch plan missing for a class
func UnknownPlan(class, plan string, known []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "unknown fetch plan: " + plan,
		Problem:     fmt.Sprintf("No fetch plan named '%s' is declared for %s or its ancestors.", plan, class),
		Suggestions: Suggest(plan, known),
		HelpCommands: []string{
			"Show the class and its plans: conduit-meta describe " + class,
		},
		NoColor: noColor,
	}
}

// InvalidDeclarations lists declaration or registry build failures
func InvalidDeclarations(path string, problems []string, noColor bool) Message {
	return Message{
		Level:        LevelError,
		Context:      "invalid declarations",
		Problem:      fmt.Sprintf("%s cannot be built into a metamodel.", path),
		Details:      problems,
		HelpCommands: []string{"Re-check after fixing: conduit-meta validate"},
		NoColor:      noColor,
	}
}

// ConfigProblem describes a configuration failure
func ConfigProblem(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		HelpCommands: []string{
			"Check conduit-meta.yaml or CONDUIT_META_* environment variables",
		},
		NoColor: noColor,
	}
}
