// Package stats builds the funnel report per acquisition source.
package stats

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/m3rciful/neuroquiz/core/telegram/format"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// Store provides the aggregate counters.
type Store interface {
	FunnelBySource(ctx context.Context) ([]storage.SourceCounts, error)
	FunnelTotal(ctx context.Context) (storage.SourceCounts, error)
}

// Metric is a count with its share of the row total.
type Metric struct {
	Count   int64
	Percent float64
}

// Row is the funnel of one source, or of every user for the total row.
type Row struct {
	Source         string
	Users          int64
	Started        Metric
	InProgress     Metric
	Completed      Metric
	ImageGenerated Metric
	TexterClicks   Metric
	Subscribed     Metric
	HolstClicks    Metric
}

// Report holds the rows per source and the total.
type Report struct {
	Sources []Row
	Total   Row
}

// Collect reads the counters and computes percentages.
func Collect(ctx context.Context, store Store) (Report, error) {
	bySource, err := store.FunnelBySource(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats: by source: %w", err)
	}
	total, err := store.FunnelTotal(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats: total: %w", err)
	}
	r := Report{Sources: make([]Row, 0, len(bySource)), Total: rowOf(total)}
	for _, c := range bySource {
		r.Sources = append(r.Sources, rowOf(c))
	}
	return r, nil
}

func rowOf(c storage.SourceCounts) Row {
	m := func(n int64) Metric { return Metric{Count: n, Percent: Percent(n, c.Total)} }
	return Row{
		Source:         c.Source,
		Users:          c.Total,
		Started:        m(c.Started),
		InProgress:     m(c.InProgress),
		Completed:      m(c.Completed),
		ImageGenerated: m(c.ImageGenerated),
		TexterClicks:   m(c.TexterClicks),
		Subscribed:     m(c.Subscribed),
		HolstClicks:    m(c.HolstClicks),
	}
}

// Percent is n/total as a percentage rounded to two decimals, 0 for an empty total.
func Percent(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)*10000/float64(total)) / 100
}

type line struct {
	label string
	m     Metric
}

func (r Row) lines() []line {
	return []line{
		{"просто нажали старт", r.Started},
		{"в процессе прохождения квиза", r.InProgress},
		{"завершили квиз", r.Completed},
		{"сгенерировали изображение", r.ImageGenerated},
		{"перешли на нейротекстер", r.TexterClicks},
		{"подписались на нейровед", r.Subscribed},
		{"перешли на нейрохолст", r.HolstClicks},
	}
}

func sourceLabel(s string) string {
	if s == "" {
		return "без метки"
	}
	return s
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// HTML renders the report for a Telegram message.
func (r Report) HTML() string {
	var b strings.Builder
	for _, row := range r.Sources {
		fmt.Fprintf(&b, "<b>Источник: %s</b> (%d)\n", format.Escape(sourceLabel(row.Source)), row.Users)
		for _, l := range row.lines() {
			fmt.Fprintf(&b, "%s: %d (%s)\n", l.label, l.m.Count, formatPercent(l.m.Percent))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "<b>Всего пользователей в боте: %d</b>\n", r.Total.Users)
	for _, l := range r.Total.lines() {
		fmt.Fprintf(&b, "%s: %d (%s)\n", l.label, l.m.Count, formatPercent(l.m.Percent))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Write prints the report for a terminal. Colour follows color.NoColor.
func (r Report) Write(w io.Writer) error {
	head := color.New(color.FgHiBlue, color.Bold)
	num := color.New(color.FgGreen)
	pct := color.New(color.FgYellow)

	var b strings.Builder
	writeRow := func(title string, row Row) {
		b.WriteString(head.Sprint(title))
		b.WriteString("\n")
		for _, l := range row.lines() {
			fmt.Fprintf(&b, "  %-30s %s %s\n", l.label, num.Sprint(l.m.Count), pct.Sprint("("+formatPercent(l.m.Percent)+")"))
		}
		b.WriteString("\n")
	}
	for _, row := range r.Sources {
		writeRow(fmt.Sprintf("Источник %q: %d", sourceLabel(row.Source), row.Users), row)
	}
	writeRow(fmt.Sprintf("Всего пользователей в боте: %d", r.Total.Users), r.Total)
	_, err := io.WriteString(w, b.String())
	return err
}

// Reporter renders the current report for the admin command.
type Reporter struct {
	store Store
}

// NewReporter returns a Reporter over store.
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// Report collects and renders the report as HTML.
func (r *Reporter) Report(ctx context.Context) (string, error) {
	rep, err := Collect(ctx, r.store)
	if err != nil {
		return "", err
	}
	return rep.HTML(), nil
}
