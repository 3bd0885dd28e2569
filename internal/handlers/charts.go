package handlers

import (
	"io"
	"net/http"
	"sort"

	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartsHandler renders the dashboard charts server-side as full echarts
// pages.
type ChartsHandler struct {
	log      *zap.Logger
	profiles *repository.ProfileRepo
	cases    *repository.CaseRepo
	attempts *repository.AttemptRepo
}

func NewChartsHandler(log *zap.Logger, profiles *repository.ProfileRepo, cases *repository.CaseRepo, attempts *repository.AttemptRepo) *ChartsHandler {
	return &ChartsHandler{log: log, profiles: profiles, cases: cases, attempts: attempts}
}

// ProfilesPie shows the distribution of generated clinical profile labels.
func (h *ChartsHandler) ProfilesPie(c *gin.Context) {
	counts, err := h.profiles.CountByLabel(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	items := make([]opts.PieData, 0, len(labels))
	for _, label := range labels {
		items = append(items, opts.PieData{Name: label, Value: counts[label]})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Perfiles clínicos generados",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("perfiles", items).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Formatter: "{b}: {c}",
		}))

	h.render(c, pie)
}

// EvaluationsTimeline shows completed attempts per day.
func (h *ChartsHandler) EvaluationsTimeline(c *gin.Context) {
	data, err := h.attempts.FinishedPerDay(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	days := make([]string, 0, len(data))
	items := make([]opts.LineData, 0, len(data))
	for _, point := range data {
		days = append(days, point.Dia)
		items = append(items, opts.LineData{Value: point.Total})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Evaluaciones completadas",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(days).
		AddSeries("evaluaciones", items).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))

	h.render(c, line)
}

// CasesBar shows open vs finished case counts by state.
func (h *ChartsHandler) CasesBar(c *gin.Context) {
	counts, err := h.cases.CountByEstado(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	estados := make([]models.CaseEstado, 0, len(counts))
	for estado := range counts {
		estados = append(estados, estado)
	}
	sort.Slice(estados, func(i, j int) bool { return estados[i] < estados[j] })

	axis := make([]string, 0, len(estados))
	items := make([]opts.BarData, 0, len(estados))
	for _, estado := range estados {
		axis = append(axis, string(estado))
		items = append(items, opts.BarData{Value: counts[estado]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Casos por estado",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(axis).AddSeries("casos", items)

	h.render(c, bar)
}

type renderable interface {
	Render(w io.Writer) error
}

func (h *ChartsHandler) render(c *gin.Context, chart renderable) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := chart.Render(c.Writer); err != nil {
		h.log.Error("Failed to render chart", zap.Error(err))
	}
}
