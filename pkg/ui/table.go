package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/kitman/pkg/components"
	"github.com/arthur-debert/kitman/pkg/core"
	"github.com/arthur-debert/kitman/pkg/fingerprint"
	"github.com/arthur-debert/kitman/pkg/manifest"
	"github.com/charmbracelet/lipgloss"
)

// table renders aligned columns with lipgloss. Plain tables use the ASCII
// profile and come out as bare text.
type table struct {
	w      io.Writer
	styles Styles
}

func newTable(w io.Writer, plain bool) *table {
	return &table{w: w, styles: NewStyles(w, plain)}
}

type cell struct {
	text  string
	style lipgloss.Style
}

func (t *table) print(title string, header []string, rows [][]cell) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if w := lipgloss.Width(c.text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(t.styles.Title.Render(title))
		b.WriteString("\n")
	}
	line := make([]string, len(header))
	if strings.Join(header, "") != "" {
		for i, h := range header {
			line[i] = t.styles.Header.Width(widths[i] + 2).Render(h)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, line...), " "))
		b.WriteString("\n")
	}
	for _, row := range rows {
		for i, c := range row {
			line[i] = c.style.Width(widths[i] + 2).Render(c.text)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, line...), " "))
		b.WriteString("\n")
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *table) Components(list []components.Component) error {
	if len(list) == 0 {
		return t.Message("No components.")
	}
	rows := make([][]cell, 0, len(list))
	for _, c := range list {
		status := cell{"available", t.styles.Muted}
		if c.Installed {
			status = cell{"installed", t.styles.Installed}
		}
		need := cell{"default", t.styles.Cell}
		switch {
		case c.Required:
			need = cell{"required", t.styles.Required}
		case c.Optional:
			need = cell{"optional", t.styles.Muted}
		}
		kind := string(c.Type)
		if c.ToolKind != "" {
			kind = string(c.ToolKind)
		}
		rows = append(rows, []cell{
			{c.Name, t.styles.Cell},
			{c.Version, t.styles.Cell},
			{kind, t.styles.Muted},
			need,
			status,
		})
	}
	return t.print("", []string{"NAME", "VERSION", "KIND", "SELECTION", "STATUS"}, rows)
}

func (t *table) Catalog(pkgs []manifest.DistPackage) error {
	if len(pkgs) == 0 {
		return t.Message("No toolkits are published on this server.")
	}
	rows := make([][]cell, 0, len(pkgs))
	for _, p := range pkgs {
		rows = append(rows, []cell{
			{p.Name, t.styles.Cell},
			{p.Version, t.styles.Cell},
			{p.Edition, t.styles.Muted},
			{p.Desc, t.styles.Cell},
		})
	}
	return t.print("", []string{"NAME", "VERSION", "EDITION", "DESCRIPTION"}, rows)
}

func (t *table) Record(rec *fingerprint.Record) error {
	if rec == nil {
		return t.Message("Nothing is installed.")
	}
	title := fmt.Sprintf("%s %s", rec.Name, rec.Version)
	if rec.Edition != "" {
		title += " (" + rec.Edition + ")"
	}
	rows := [][]cell{{{"install dir", t.styles.Muted}, {rec.InstallDir, t.styles.Cell}}}
	if rec.Toolchain != nil {
		rows = append(rows,
			[]cell{{"toolchain", t.styles.Muted}, {rec.Toolchain.Channel, t.styles.Cell}},
			[]cell{{"components", t.styles.Muted}, {strings.Join(rec.Toolchain.Components, ", "), t.styles.Cell}},
		)
	}
	for _, tool := range rec.Tools {
		label := tool.Name
		if tool.Version != "" {
			label += " " + tool.Version
		}
		rows = append(rows, []cell{{string(tool.Kind), t.styles.Muted}, {label, t.styles.Cell}})
	}
	if rec.InProgress != "" {
		rows = append(rows, []cell{{"interrupted", t.styles.Warning}, {rec.InProgress, t.styles.Warning}})
	}
	return t.print(title, []string{"", ""}, rows)
}

func (t *table) Result(res *core.Result) error {
	var b strings.Builder
	if len(res.Succeeded) > 0 {
		fmt.Fprintf(&b, "%s %s\n", t.styles.Success.Render("Installed:"), strings.Join(res.Succeeded, ", "))
	}
	if len(res.Removed) > 0 {
		fmt.Fprintf(&b, "%s %s\n", t.styles.Success.Render("Removed:"), strings.Join(res.Removed, ", "))
	}
	if res.ToolchainErr != nil {
		fmt.Fprintf(&b, "%s %v\n", t.styles.Error.Render("Toolchain failed:"), res.ToolchainErr)
	}
	for _, f := range res.Failed {
		label := t.styles.Error.Render("Failed:")
		if f.Skipped {
			label = t.styles.Warning.Render("Skipped:")
		}
		fmt.Fprintf(&b, "%s %s: %v\n", label, f.Name, f.Err)
	}
	if res.Resumed != "" {
		fmt.Fprintf(&b, "%s\n", t.styles.Warning.Render("Recovered from an interrupted operation."))
	}
	if b.Len() == 0 {
		b.WriteString("Nothing to do.\n")
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *table) Message(msg string) error {
	_, err := fmt.Fprintln(t.w, msg)
	return err
}
