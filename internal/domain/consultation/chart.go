package consultation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"regexp"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"
)

// Chart names served under /consultation/charts/.
const (
	ChartDose        = "dose"
	ChartSideEffects = "side-effects"
	ChartPHQ9        = "phq9"
	ChartAdherence   = "adherence"
)

const chartHeight = "340px"

// optionChart is satisfied by every go-echarts chart type.
type optionChart interface {
	render.Renderer
	JSON() map[string]interface{}
	JSONNotEscaped() template.HTML
}

var errChartOption = errors.New("chart option not found in rendered document")

// funcMarker mirrors the marker go-echarts strips from rendered output.
var funcMarker = regexp.MustCompile(`(__f__")|("__f__)|(__f__)`)

// scriptSafe renders a chart with its option JSON HTML-escaped, so symptom
// names and other stored text cannot close the inline script. The browser
// decodes \u003c back to the original text.
type scriptSafe struct {
	chart optionChart
}

func (s scriptSafe) options() (raw, safe []byte, err error) {
	safe, err = json.Marshal(s.chart.JSON())
	if err != nil {
		return nil, nil, fmt.Errorf("marshal chart options: %w", err)
	}
	raw = bytes.TrimSpace([]byte(s.chart.JSONNotEscaped()))
	return funcMarker.ReplaceAll(raw, nil), funcMarker.ReplaceAll(safe, nil), nil
}

func (s scriptSafe) document() ([]byte, error) {
	content := s.chart.RenderContent()
	raw, safe, err := s.options()
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(content, raw) {
		return nil, errChartOption
	}
	return bytes.Replace(content, raw, safe, 1), nil
}

func (s scriptSafe) Render(w io.Writer) error {
	doc, err := s.document()
	if err != nil {
		return err
	}
	_, err = w.Write(doc)
	return err
}

// RenderContent returns nil when the document cannot be made safe.
func (s scriptSafe) RenderContent() []byte {
	doc, err := s.document()
	if err != nil {
		return nil
	}
	return doc
}

func (s scriptSafe) RenderSnippet() render.ChartSnippet {
	snippet := s.chart.RenderSnippet()
	raw, safe, err := s.options()
	if err != nil || !bytes.Contains([]byte(snippet.Script), raw) {
		return render.ChartSnippet{Element: snippet.Element}
	}
	snippet.Script = string(bytes.Replace([]byte(snippet.Script), raw, safe, 1))
	snippet.Option = string(safe)
	return snippet
}

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     "100%",
		Height:    chartHeight,
	})
}

func lineValue(v *float64) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}

func newTrendLine(title, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "날짜"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	return line
}

// DoseChart plots the recommended dose over time. The recommended interval
// only appears in the tooltip. Rows without a date are left out.
func DoseChart(rows []DailyPrediction) render.Renderer {
	line := newTrendLine("추천 용량 추세", "추천 용량(mg)")
	var dates []string
	var points []opts.LineData
	for _, r := range rows {
		if r.Date == nil {
			continue
		}
		dates = append(dates, r.Date.Format("2006-01-02"))
		name := "추천 간격 -"
		if r.PredFrequency != nil {
			name = fmt.Sprintf("추천 간격 %gh", *r.PredFrequency)
		}
		points = append(points, opts.LineData{Name: name, Value: lineValue(r.PredDose)})
	}
	line.SetXAxis(dates).
		AddSeries("추천 용량(mg)", points).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return scriptSafe{line}
}

// SideEffectChart stacks report counts per symptom, one series per severity
// label.
func SideEffectChart(reports []SideEffectReport) render.Renderer {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts("부작용 증상별 심각도 분포"),
		charts.WithTitleOpts(opts.Title{Title: "부작용 증상별 심각도 분포"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "건수"}),
	)

	symptoms, counts := SeverityCounts(reports)
	bar.SetXAxis(symptoms)
	for _, label := range SeverityLabels() {
		var data []opts.BarData
		var total int
		for _, s := range symptoms {
			n := counts[s][label]
			total += n
			data = append(data, opts.BarData{Value: n})
		}
		if total == 0 && label == SeverityUnknownLabel {
			continue
		}
		bar.AddSeries(label, data, charts.WithBarChartOpts(opts.BarChart{Stack: "severity"}))
	}
	return scriptSafe{bar}
}

// PHQ9Chart plots the full PHQ-9 history with point markers.
func PHQ9Chart(rows []PHQ9Record) render.Renderer {
	line := newTrendLine("PHQ-9 추정 점수 추세", "PHQ-9")
	dates := make([]string, 0, len(rows))
	points := make([]opts.LineData, 0, len(rows))
	for _, r := range rows {
		dates = append(dates, r.RecordDate.Format("2006-01-02"))
		points = append(points, opts.LineData{Value: lineValue(r.Score)})
	}
	line.SetXAxis(dates).
		AddSeries("PHQ-9", points).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return scriptSafe{line}
}

// AdherenceChart plots daily pdc over the full history. Non-numeric values
// leave gaps.
func AdherenceChart(rows []AdherenceRecord) render.Renderer {
	line := newTrendLine("일별 복용 순응도 추세", "PDC")
	var dates []string
	var points []opts.LineData
	for _, r := range rows {
		if r.RecordDate == nil {
			continue
		}
		dates = append(dates, r.RecordDate.Format("2006-01-02"))
		points = append(points, opts.LineData{Value: lineValue(r.PDC)})
	}
	line.SetXAxis(dates).
		AddSeries("PDC", points).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return scriptSafe{line}
}
