package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"conduit/internal/agent"
	"conduit/internal/jsonx"
	"conduit/internal/workflow"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Output formats accepted by --format.
const (
	formatPretty   = "pretty"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6B7280")).
			Padding(0, 1)
)

func renderResult(w io.Writer, result *workflow.Result, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, result)
	case formatMarkdown:
		return renderMarkdown(w, resultMarkdown(result))
	case formatPretty, "":
		_, err := fmt.Fprint(w, resultPretty(result, isTTY()))
		return err
	default:
		return fmt.Errorf("unknown format %q (want pretty, json or markdown)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// resultPretty renders the run summary. Styling only applies on a terminal.
func resultPretty(result *workflow.Result, styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(headerStyle, "Workflow result") + "\n")
	status := string(result.Status)
	if result.Status == workflow.StatusSuccess {
		b.WriteString("Status: " + style(successStyle, status) + "\n\n")
	} else {
		b.WriteString("Status: " + style(errorStyle, status) + "\n\n")
	}

	for i, rec := range result.History {
		mark := "✓"
		if rec.Status != agent.StatusSuccess {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %d. %s (%s)\n", mark, i+1, rec.AgentName, rec.Duration().Round(time.Millisecond))
		if rec.Error != "" {
			fmt.Fprintf(&b, "   %s\n", firstLine(rec.Error))
		}
	}

	if result.FinalOutput != nil {
		data, _ := jsonx.MarshalIndent(result.FinalOutput.Data, "", "  ")
		body := string(data)
		if styled {
			body = boxStyle.Render(body)
		}
		b.WriteString("\n" + body + "\n")
		fmt.Fprintf(&b, "confidence %.2f\n", result.FinalOutput.Confidence)
	}
	return b.String()
}

// resultMarkdown renders the final outline, or the failure, as markdown.
func resultMarkdown(result *workflow.Result) string {
	var b strings.Builder
	if result.Status != workflow.StatusSuccess {
		b.WriteString("# Workflow failed\n\n")
		for _, rec := range result.History {
			if rec.Error != "" {
				fmt.Fprintf(&b, "- **%s**: %s\n", rec.AgentName, firstLine(rec.Error))
			}
		}
		return b.String()
	}

	outline, _ := result.FinalOutput.Data["content_outline"].(map[string]any)
	if outline == nil {
		b.WriteString("# Result\n\n```json\n")
		data, _ := jsonx.MarshalIndent(result.FinalOutput.Data, "", "  ")
		b.Write(data)
		b.WriteString("\n```\n")
		return b.String()
	}

	fmt.Fprintf(&b, "# %v\n\n", outline["headline"])
	fmt.Fprintf(&b, "%v\n\n", outline["introduction"])
	b.WriteString("## Benefits\n\n")
	for _, benefit := range stringList(outline["benefits_section"]) {
		fmt.Fprintf(&b, "- %s\n", benefit)
	}
	fmt.Fprintf(&b, "\n**%v**\n", outline["call_to_action"])
	return b.String()
}

func renderMarkdown(w io.Writer, content string) error {
	if !isTTY() {
		_, err := fmt.Fprint(w, content)
		return err
	}
	width := 80
	if termWidth, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && termWidth > 0 {
		width = min(termWidth-4, 120)
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

func stringList(v any) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
