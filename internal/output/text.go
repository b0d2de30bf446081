package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/brokerdb/sqlguard/internal/validator"
)

// TextRenderer produces Lip Gloss styled terminal output for one
// validation outcome (spec §4.4's "either {rejection} or {output plan}").
type TextRenderer struct {
	w io.Writer
}

// RenderAccepted renders a successful validation: the Plan's per-column
// disclosure classification, one line per SELECT output column.
func (r *TextRenderer) RenderAccepted(sql string, plan validator.Plan) {
	width := 60
	fmt.Fprintln(r.w)

	title := TitleStyle.Render("sqlguard — query accepted")
	var lines []string
	lines = append(lines, MutedText.Render(truncateSQL(sql)))
	lines = append(lines, "")
	for i, entry := range plan {
		lines = append(lines, r.planLine(i, entry))
	}
	box := SafeBoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

// RenderRejected renders a validator.Error: its VERR_* code and message.
func (r *TextRenderer) RenderRejected(sql string, verr *validator.Error) {
	width := 60
	fmt.Fprintln(r.w)

	title := TitleStyle.Render("sqlguard — query rejected")
	lines := []string{
		MutedText.Render(truncateSQL(sql)),
		"",
		r.labelValue("Code:", DangerText.Render(verr.Code.String())),
		r.labelValue("Reason:", verr.Message),
	}
	box := DangerBoxStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) planLine(index int, entry validator.Entry) string {
	label := fmt.Sprintf("column %d:", index+1)
	if entry.Kind == validator.Token {
		return r.labelValue(label, WarningText.Render("TOKEN")+" "+MutedText.Render("("+entry.SourceColID+")"))
	}
	return r.labelValue(label, SafeText.Render("PLAINTEXT"))
}

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

func truncateSQL(sql string) string {
	const max = 200
	sql = strings.TrimSpace(sql)
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
