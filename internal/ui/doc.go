// Package ui provides terminal rendering for the nxqos commands.
//
// The package wraps lipgloss styles into a few reusable blocks: command
// headers, success/failure/warning result boxes, validation violation
// listings, and confirmation prompts for live deployments. Everything
// renders to plain strings so commands decide where output goes.
//
// Widths adapt to the terminal (bounded between MinTerminalWidth and
// MaxContentWidth); rendering falls back to the minimum width when stdout
// is not a terminal.
package ui
