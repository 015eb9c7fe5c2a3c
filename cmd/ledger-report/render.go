package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ledger/internal/adapters"
)

var (
	colorHeading  = lipgloss.Color("#89b4fa")
	colorNegative = lipgloss.Color("#f38ba8")
	colorMuted    = lipgloss.Color("#7f849c")

	headingStyle = lipgloss.NewStyle().Foreground(colorHeading).Bold(true)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
)

// renderText lays the view out as a summary line followed by one table
// per section. Empty sections are left out.
func renderText(view adapters.ViewData) string {
	var b strings.Builder

	b.WriteString(headingStyle.Render("Summary") + "\n")
	b.WriteString(newTable([]string{"Income", "Expense", "Balance"}, [][]string{
		{view.Income, view.Expense, view.Balance},
	}, 0, 1, 2).Render() + "\n")

	if len(view.Categories) > 0 {
		rows := make([][]string, 0, len(view.Categories))
		for _, c := range view.Categories {
			rows = append(rows, []string{c.Name, c.Amount, fmt.Sprintf("%.1f%%", c.Percent)})
		}
		b.WriteString("\n" + headingStyle.Render("Expenses by category") + "\n")
		b.WriteString(newTable([]string{"Category", "Expense", "Share"}, rows, 1, 2).Render() + "\n")
	}

	if len(view.Months) > 0 {
		rows := make([][]string, 0, len(view.Months))
		for _, m := range view.Months {
			rows = append(rows, []string{m.Month, m.Income, m.Expense, m.Balance})
		}
		b.WriteString("\n" + headingStyle.Render("Months") + "\n")
		b.WriteString(newTable([]string{"Month", "Income", "Expense", "Balance"}, rows, 1, 2, 3).Render() + "\n")
	}

	if len(view.Records) > 0 {
		rows := make([][]string, 0, len(view.Records))
		for _, r := range view.Records {
			rows = append(rows, []string{r.Date, r.Kind, r.Category, r.Amount, r.Note})
		}
		b.WriteString("\n" + headingStyle.Render("Records") + "\n")
		b.WriteString(newTable([]string{"Date", "Kind", "Category", "Amount", "Note"}, rows, 3).Render() + "\n")
	}

	if len(view.Records) == 0 && len(view.Categories) == 0 && len(view.Months) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(colorMuted).Render("No records in range") + "\n")
	}
	return b.String()
}

// newTable right-aligns the numeric columns.
func newTable(headers []string, rows [][]string, numeric ...int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(tableStyle(rows, numeric))
}

// tableStyle highlights numeric cells starting with a minus sign.
func tableStyle(rows [][]string, numeric []int) func(row, col int) lipgloss.Style {
	return func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return cellStyle.Bold(true)
		}
		if !slices.Contains(numeric, col) {
			return cellStyle
		}
		if row >= 0 && row < len(rows) && col < len(rows[row]) && strings.HasPrefix(rows[row][col], "-") {
			return numberStyle.Foreground(colorNegative)
		}
		return numberStyle
	}
}
