// Package viz renders trajectory dataset summaries for the terminal and
// for image files.
//
//   - Styles: lipgloss styles shared by the CLI and the build TUI
//   - [RenderHistogram]: asciigraph chart of a score distribution
//   - [SaveHistogram]: PNG histogram written with gonum/plot
package viz
