package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/richard-senior/leaguesim/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/////////////////////////////////////////////////////////////////////////
////// Helpers
/////////////////////////////////////////////////////////////////////////

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDuration spells out a duration, e.g. "1 minute, 5 seconds, 250 milliseconds".
// Seconds appear when non zero or when nothing larger does.
func FormatDuration(d time.Duration) string {
	totalMs := d.Round(time.Millisecond).Milliseconds()
	if totalMs < 0 {
		totalMs = 0
	}
	ms := totalMs % 1000
	secs := totalMs / 1000
	days, secs := secs/86400, secs%86400
	hours, secs := secs/3600, secs%3600
	minutes, secs := secs/60, secs%60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, plural(secs, "second"))
	}
	if ms > 0 {
		parts = append(parts, plural(ms, "millisecond"))
	}
	return strings.Join(parts, ", ")
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RunDir is base/<league>/<YYYY-MM-DD>/<HH-MM-SS>
func RunDir(base, leagueName string, t time.Time) string {
	name := strings.Trim(unsafePathChars.ReplaceAllString(leagueName, "_"), "_")
	if name == "" {
		name = "league"
	}
	return filepath.Join(base, name, t.Format("2006-01-02"), t.Format("15-04-05"))
}

func percent(p float64) string {
	return fmt.Sprintf("%.3f%%", p*100)
}

func errorText(e float64) string {
	if math.IsInf(e, 1) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f pp", e)
}

/////////////////////////////////////////////////////////////////////////
////// Text
/////////////////////////////////////////////////////////////////////////

// WriteText writes the plain text report
func WriteText(w io.Writer, s *Summary) error {
	res := s.Result
	if res == nil {
		return fmt.Errorf("summary has no simulation result")
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s, %d fixtures remaining\n\n", s.Title(), s.Fixtures)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, row := range s.Rows() {
		var probs []string
		for pos, p := range row.Probabilities {
			if p > 0 {
				probs = append(probs, fmt.Sprintf("Pos %d: %s", pos+1, percent(p)))
			}
		}
		fmt.Fprintf(tw, "%s - %d pts (%d/%d)\t│ %s\n", row.Team, row.Points, row.Played, row.SeasonLength, strings.Join(probs, "  "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if table, share := res.MostLikelyTable(); len(table) > 0 {
		fmt.Fprintf(&b, "\nMost likely complete table (%s of simulations)\n", percent(share))
		tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Pos\tTeam")
		for i, team := range table {
			fmt.Fprintf(tw, "%d\t%s\n", i+1, team)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(&b, "\nMost frequent classification")
	tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Pos\tTeam\tProbability")
	for _, m := range s.Classification() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Position, m.Team, percent(m.Probability))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(&b)
	tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Iterations:\t%d of %d completed, %d skipped\n", res.Completed, res.Requested, res.Skipped)
	fmt.Fprintf(tw, "Elapsed:\t%s\n", FormatDuration(res.Elapsed))
	fmt.Fprintf(tw, "Error estimate:\t%s\n", errorText(res.ErrorEstimate))
	fmt.Fprintf(tw, "Stopped:\t%s (%s)\n", res.Reason, res.Reason.Describe())
	fmt.Fprintf(tw, "Rho:\t%.4f (%s)\n", s.Rho.Rho, s.RhoSource())
	fmt.Fprintf(tw, "Home advantage:\t%.2f\n", s.HomeAdvantage)
	fmt.Fprintf(tw, "Workers:\t%d\n", res.Workers)
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := w.Write(b.Bytes())
	return err
}

/////////////////////////////////////////////////////////////////////////
////// HTML and Markdown
/////////////////////////////////////////////////////////////////////////

var funcs = template.FuncMap{
	"percent": percent,
	"duration": func(d time.Duration) string {
		return FormatDuration(d)
	},
	"errorText": errorText,
	"inc":       func(i int) int { return i + 1 },
	"positions": func(n int) []int {
		ret := make([]int, n)
		for i := range ret {
			ret[i] = i + 1
		}
		return ret
	},
	"cell": func(p float64) template.CSS {
		if p <= 0 {
			return ""
		}
		return template.CSS(fmt.Sprintf("background-color: rgba(55, 77, 245, %.3f)", 0.1+0.9*p))
	},
	"cellText": func(p float64) string {
		if p <= 0 {
			return ""
		}
		return fmt.Sprintf("%.1f", p*100)
	},
	"swatch": func(row TeamRow) template.CSS {
		return template.CSS(fmt.Sprintf("background-color: %s; color: %s", row.Colour, row.TextColour))
	},
}

var htmlTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: right; }
td.team { text-align: left; white-space: nowrap; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Fixtures}} fixtures remaining. Cells are the percentage chance of finishing in each position.</p>
<table>
<tr><th>Team</th><th>Pts</th><th>Played</th>{{range positions (len .Standings)}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td class="team" style="{{swatch .}}">{{.Team}}</td><td>{{.Points}}</td><td>{{.Played}}/{{.SeasonLength}}</td>{{range .Probabilities}}<td style="{{cell .}}">{{cellText .}}</td>{{end}}</tr>
{{end}}</table>
{{template "classification" .}}
{{template "metadata" .}}
</body>
</html>
{{define "classification"}}<h2>Most frequent classification</h2>
<ol>
{{range .Classification}}<li>{{.Team}} ({{percent .Probability}})</li>
{{end}}</ol>
{{end}}
{{define "metadata"}}<h2>Run</h2>
<ul>
<li>Iterations: {{.Result.Completed}} of {{.Result.Requested}} completed, {{.Result.Skipped}} skipped</li>
<li>Elapsed: {{duration .Result.Elapsed}}</li>
<li>Error estimate: {{errorText .Result.ErrorEstimate}}</li>
<li>Stopped: {{.Result.Reason}} ({{.Result.Reason.Describe}})</li>
<li>Rho: {{printf "%.4f" .Rho.Rho}} ({{.RhoSource}})</li>
<li>Home advantage: {{printf "%.2f" .HomeAdvantage}}</li>
</ul>
{{end}}`))

// the markdown rendition leaves out the wide position grid
var markdownTemplate = template.Must(template.Must(htmlTemplate.Clone()).New("markdown").Parse(`<h1>{{.Title}}</h1>
<p>{{.Fixtures}} fixtures remaining.</p>
<h2>Chances by team</h2>
<ul>
{{range .Rows}}<li><strong>{{.Team}}</strong> {{.Points}} pts ({{.Played}}/{{.SeasonLength}}):{{range $i, $p := .Probabilities}}{{if gt $p 0.0}} Pos {{inc $i}}: {{percent $p}}{{end}}{{end}}</li>
{{end}}</ul>
{{template "classification" .}}
{{template "metadata" .}}`))

// RenderHTML renders the full report page
func RenderHTML(s *Summary) (string, error) {
	if s.Result == nil {
		return "", fmt.Errorf("summary has no simulation result")
	}
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, s); err != nil {
		return "", fmt.Errorf("failed to render html report: %w", err)
	}
	return b.String(), nil
}

// RenderMarkdown renders a compact report through html-to-markdown
func RenderMarkdown(s *Summary) (string, error) {
	if s.Result == nil {
		return "", fmt.Errorf("summary has no simulation result")
	}
	var b bytes.Buffer
	if err := markdownTemplate.ExecuteTemplate(&b, "markdown", s); err != nil {
		return "", fmt.Errorf("failed to render markdown report: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(b.String())
	if err != nil {
		return "", fmt.Errorf("failed to convert report to markdown: %w", err)
	}
	return md, nil
}

/////////////////////////////////////////////////////////////////////////
////// Files
/////////////////////////////////////////////////////////////////////////

type frequencyFile struct {
	ID            string               `json:"id"`
	League        string               `json:"league"`
	Completed     int64                `json:"completed"`
	Reason        string               `json:"reason"`
	Counts        map[string][]int64   `json:"counts"`
	Probabilities map[string][]float64 `json:"probabilities"`
}

// Save writes report.txt, report.html, report.md and frequencies.json into dir
func Save(dir string, s *Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	var text bytes.Buffer
	if err := WriteText(&text, s); err != nil {
		return err
	}
	html, err := RenderHTML(s)
	if err != nil {
		return err
	}
	md, err := RenderMarkdown(s)
	if err != nil {
		return err
	}

	freq := frequencyFile{
		ID:            s.ID,
		League:        s.League,
		Completed:     s.Result.Completed,
		Reason:        string(s.Result.Reason),
		Counts:        map[string][]int64{},
		Probabilities: map[string][]float64{},
	}
	for i, team := range s.Result.Frequencies.Teams {
		freq.Counts[team] = s.Result.Frequencies.Counts[i]
		freq.Probabilities[team] = s.Result.Frequencies.Distribution(team)
	}
	freqJSON, err := json.MarshalIndent(freq, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode frequencies: %w", err)
	}

	files := map[string][]byte{
		"report.txt":       text.Bytes(),
		"report.html":      []byte(html),
		"report.md":        []byte(md),
		"frequencies.json": freqJSON,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	logger.Info("Reports written to", dir)
	return nil
}
