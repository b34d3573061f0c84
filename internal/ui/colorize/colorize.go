// Package colorize provides terminal styling for probe reports and
// emulation traces.
package colorize

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// IDA-style theme colors
const (
	colorAddress = "#FFC800" // Yellow for addresses and labels
	colorDetail  = "#B4B4B4" // Light gray for detail text
	colorTag     = "#FFB4C8" // Light pink for hashtags
	colorPass    = "#00FF00" // Green for passing probes
	colorFail    = "#FF5050" // Red for failures
	colorComment = "#FF8000" // Orange for trace comments
	colorHex     = "#646464" // Dark gray for raw hex bytes
	colorHeader  = "#87CEEB" // Light blue for headers
)

var (
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAddress))
	funcStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAddress))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDetail))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorTag))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPass)).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorFail)).Bold(true)
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorComment))
	hexStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorHex))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorHeader)).Bold(true)
)

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("MICROPROBE_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Address formats a 32-bit address
func Address(addr uint64) string {
	s := fmt.Sprintf("%08X", addr)
	if IsDisabled() {
		return s
	}
	return addressStyle.Render(s)
}

// FuncName formats a symbol or probe name (IDA style labels)
func FuncName(name string) string {
	if IsDisabled() {
		return name
	}
	return funcStyle.Render(name)
}

// Detail formats detail text in light gray
func Detail(detail string) string {
	if IsDisabled() {
		return detail
	}
	return detailStyle.Render(detail)
}

// Tag formats a hashtag
func Tag(tag string) string {
	if IsDisabled() {
		return tag
	}
	return tagStyle.Render(tag)
}

// Pass formats a passing verdict
func Pass(s string) string {
	if IsDisabled() {
		return s
	}
	return passStyle.Render(s)
}

// Fail formats a failing verdict
func Fail(s string) string {
	if IsDisabled() {
		return s
	}
	return failStyle.Render(s)
}

// Error formats an error message
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return failStyle.Render(s)
}

// Comment formats a trace comment
func Comment(s string) string {
	if IsDisabled() {
		return s
	}
	return commentStyle.Render(s)
}

// HexBytes formats raw instruction bytes
func HexBytes(s string) string {
	if IsDisabled() {
		return s
	}
	return hexStyle.Render(s)
}

// Header formats a report header
func Header(s string) string {
	if IsDisabled() {
		return s
	}
	return headerStyle.Render(s)
}

// Instruction formats a disassembled instruction. Thumb images mostly fall
// back to raw halfwords, so this stays a plain style rather than a lexer.
func Instruction(insn string) string {
	if IsDisabled() {
		return insn
	}
	return lipgloss.NewStyle().Render(insn)
}
