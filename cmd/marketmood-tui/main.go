package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"marketmood/internal/display"
	"marketmood/internal/domain"
	"marketmood/pkg/marketmood"
)

// Styles.
var (
	bullishStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	bearishStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	neutralMood    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	favSymbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")) // orange for favorites
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	heatmapStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")) // black on yellow
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	highlightBG    = lipgloss.Color("236") // dark grey background
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var windows = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}

const trendDays = 30

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func moodStyle(mood string) lipgloss.Style {
	switch mood {
	case "bullish":
		return bullishStyle
	case "bearish":
		return bearishStyle
	default:
		return neutralMood
	}
}

// changeStyle colors a price change by sign; absent values render dim.
func changeStyle(f domain.Float) lipgloss.Style {
	switch {
	case !f.Valid:
		return dimStyle
	case f.Value < 0:
		return lossStyle
	default:
		return gainStyle
	}
}

// opt adapts the SDK's nullable numbers to the display helpers.
func opt(p *float64) domain.Float {
	if p == nil {
		return domain.Float{}
	}
	return domain.FloatFrom(*p)
}

// Messages.
type tickMsg time.Time

type dashboardMsg struct {
	dash *marketmood.Dashboard
	err  error
}

type panelsMsg struct {
	symbol  string
	quote   *marketmood.Quote
	history *marketmood.History
	news    *marketmood.News
	funds   *marketmood.Fundamentals
	trend   *marketmood.MoodHistory
	err     error
}

type analysisMsg struct {
	analysis *marketmood.Analysis
	err      error
}

type heatmapMsg struct {
	heatmap *marketmood.Heatmap
	err     error
}

type favToggleMsg struct {
	symbol string
	added  bool
	err    error
}

type selectMsg struct {
	symbol string
	err    error
}

type streamConnectedMsg struct {
	stream *marketmood.EventStream
	err    error
}

type streamMsg struct {
	event marketmood.Event
	err   error
}

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model.
type model struct {
	client *marketmood.Client
	logger *slog.Logger

	// Server session.
	dash      marketmood.Dashboard
	selected  int // index into dash.Tickers
	windowIdx int
	articles  int

	// Panels for the selected ticker. Nil until loaded.
	symbol  string
	quote   *marketmood.Quote
	history *marketmood.History
	news    *marketmood.News
	funds   *marketmood.Fundamentals
	trend   *marketmood.MoodHistory

	// Analysis progress, fed by the event stream.
	running     bool
	done, total int
	spinnerIdx  int
	prog        progress.Model

	// Heatmap mode.
	heatmapMode    bool
	heatmapLoading bool
	heatmap        *marketmood.Heatmap

	stream *marketmood.EventStream
	status string

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(client *marketmood.Client, dash *marketmood.Dashboard, logger *slog.Logger) model {
	m := model{
		client:   client,
		logger:   logger,
		dash:     *dash,
		symbol:   dash.Ticker,
		articles: dash.ArticleCount,
		running:  dash.Running,
		prog:     progress.New(progress.WithDefaultGradient()),
	}
	m.prog.Width = 30
	if m.articles <= 0 {
		m.articles = 30
	}
	if m.symbol == "" && len(dash.Tickers) > 0 {
		m.symbol = dash.Tickers[0]
	}
	if idx := indexOf(dash.Tickers, m.symbol); idx >= 0 {
		m.selected = idx
	}
	m.windowIdx = indexOf(windows, dash.Window)
	if m.windowIdx < 0 {
		m.windowIdx = indexOf(windows, "1mo")
	}
	return m
}

func (m model) window() string {
	return windows[m.windowIdx]
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.loadPanels(m.symbol), m.connectStream())
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (m model) loadDashboard() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d, err := c.Dashboard(ctx)
		return dashboardMsg{dash: d, err: err}
	}
}

// loadPanels fetches every dashboard panel for one symbol. Degraded panels
// come back with warnings rather than errors, so an error here means the
// server itself is unreachable.
func (m model) loadPanels(symbol string) tea.Cmd {
	c := m.client
	window := m.window()
	limit := m.articles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		msg := panelsMsg{symbol: symbol}
		var err error
		if msg.quote, err = c.Quote(ctx, symbol); err != nil {
			msg.err = err
			return msg
		}
		if msg.history, err = c.History(ctx, symbol, window); err != nil {
			msg.err = err
			return msg
		}
		if msg.news, err = c.News(ctx, symbol, limit); err != nil {
			msg.err = err
			return msg
		}
		if msg.funds, err = c.Fundamentals(ctx, symbol); err != nil {
			msg.err = err
			return msg
		}
		if msg.trend, err = c.MoodHistory(ctx, symbol, trendDays); err != nil {
			msg.err = err
			return msg
		}
		return msg
	}
}

func (m model) analyzeCmd() tea.Cmd {
	c := m.client
	symbol := m.symbol
	opts := marketmood.AnalyzeOptions{Window: m.window(), Articles: m.articles}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		a, err := c.Analyze(ctx, symbol, opts)
		return analysisMsg{analysis: a, err: err}
	}
}

func (m model) loadHeatmap() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h, err := c.Heatmap(ctx)
		return heatmapMsg{heatmap: h, err: err}
	}
}

func (m model) connectStream() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		stream, err := c.Events(context.Background())
		return streamConnectedMsg{stream: stream, err: err}
	}
}

func waitStream(stream *marketmood.EventStream) tea.Cmd {
	return func() tea.Msg {
		evt, err := stream.Next(context.Background())
		return streamMsg{event: evt, err: err}
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit

		case "up", "k", "down", "j":
			if m.heatmapMode || len(m.dash.Tickers) == 0 {
				break
			}
			if msg.String() == "up" || msg.String() == "k" {
				if m.selected > 0 {
					m.selected--
				}
			} else {
				if m.selected < len(m.dash.Tickers)-1 {
					m.selected++
				}
			}
			sym := m.dash.Tickers[m.selected]
			if sym == m.symbol {
				return m, nil
			}
			return m, m.switchTicker(sym, true)

		case "left", "right":
			if m.heatmapMode {
				return m, nil
			}
			if msg.String() == "left" {
				m.windowIdx = (m.windowIdx + len(windows) - 1) % len(windows)
			} else {
				m.windowIdx = (m.windowIdx + 1) % len(windows)
			}
			m.history = nil
			if m.ready {
				m.viewport.SetContent(m.renderContent())
			}
			return m, m.loadPanels(m.symbol)

		case "a", "enter":
			if m.running || m.symbol == "" {
				return m, nil
			}
			m.status = fmt.Sprintf("analyzing %s...", m.symbol)
			return m, m.analyzeCmd()

		case "f":
			if m.symbol == "" {
				return m, nil
			}
			return m, m.toggleFavorite(m.symbol)

		case "+", "=":
			if m.articles < 50 {
				m.articles += 5
			}
			return m, nil

		case "-", "_":
			if m.articles > 5 {
				m.articles -= 5
			}
			return m, nil

		case "m":
			m.heatmapMode = !m.heatmapMode
			if m.ready {
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
			}
			if m.heatmapMode {
				m.heatmapLoading = true
				return m, m.loadHeatmap()
			}
			return m, nil

		case "r":
			m.clearPanels()
			if m.ready {
				m.viewport.SetContent(m.renderContent())
			}
			return m, tea.Batch(m.loadDashboard(), m.loadPanels(m.symbol))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 1
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
			m.viewport.SetContent(m.renderContent())
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case tickMsg:
		m.spinnerIdx++
		cmds := []tea.Cmd{tickCmd(), m.loadDashboard()}
		if m.stream == nil {
			cmds = append(cmds, m.connectStream())
		}
		return m, tea.Batch(cmds...)

	case dashboardMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("server unreachable: %v", msg.err)
			return m, nil
		}
		m.status = ""
		m.dash = *msg.dash
		m.running = msg.dash.Running
		if idx := indexOf(m.dash.Tickers, m.symbol); idx >= 0 {
			m.selected = idx
		} else if len(m.dash.Tickers) > 0 {
			m.selected = 0
			return m, m.switchTicker(m.dash.Tickers[0], false)
		}
		if m.ready && !m.heatmapMode {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case panelsMsg:
		if msg.symbol != m.symbol {
			return m, nil // stale fetch for a previous selection
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("loading %s: %v", msg.symbol, msg.err)
			return m, nil
		}
		m.quote = msg.quote
		m.history = msg.history
		m.news = msg.news
		m.funds = msg.funds
		m.trend = msg.trend
		if m.ready && !m.heatmapMode {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case analysisMsg:
		if msg.err != nil {
			var apiErr *marketmood.APIError
			if errors.As(msg.err, &apiErr) && apiErr.Status == 409 {
				m.status = "analysis already running"
			} else {
				m.status = fmt.Sprintf("analysis failed: %v", msg.err)
			}
			m.running = false
			return m, nil
		}
		m.status = ""
		m.running = false
		m.dash.LastAnalysis = msg.analysis
		if m.ready && !m.heatmapMode {
			m.viewport.SetContent(m.renderContent())
		}
		return m, tea.Batch(m.loadDashboard(), m.loadPanels(m.symbol))

	case heatmapMsg:
		m.heatmapLoading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("heatmap failed: %v", msg.err)
			return m, nil
		}
		m.heatmap = msg.heatmap
		if m.ready && m.heatmapMode {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case favToggleMsg:
		if msg.err != nil {
			m.logger.Warn("favorite toggle failed", "symbol", msg.symbol, "error", msg.err)
			// Revert optimistic update.
			if msg.added {
				m.dash.Favorites = removeString(m.dash.Favorites, msg.symbol)
			} else {
				m.dash.Favorites = append(m.dash.Favorites, msg.symbol)
			}
			m.status = fmt.Sprintf("favorite toggle failed: %v", msg.err)
			if m.ready {
				m.viewport.SetContent(m.renderContent())
			}
		}
		return m, nil

	case selectMsg:
		if msg.err != nil {
			m.logger.Warn("select failed", "symbol", msg.symbol, "error", msg.err)
		}
		return m, nil

	case streamConnectedMsg:
		if msg.err != nil {
			m.logger.Warn("event stream unavailable", "error", msg.err)
			return m, nil
		}
		m.stream = msg.stream
		m.logger.Info("event stream connected")
		return m, waitStream(m.stream)

	case streamMsg:
		if msg.err != nil {
			m.logger.Warn("event stream closed", "error", msg.err)
			m.stream = nil
			return m, nil
		}
		return m.handleEvent(msg.event)
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// handleEvent applies one server-pushed session event and re-arms the
// stream read.
func (m model) handleEvent(evt marketmood.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitStream(m.stream)}

	switch evt.Kind {
	case "analysis_started":
		m.running = true
		m.done, m.total = 0, evt.Total
		m.status = ""

	case "article_classified":
		m.done, m.total = evt.Done, evt.Total
		m.spinnerIdx++

	case "analysis_finished":
		m.running = false
		cmds = append(cmds, m.loadDashboard(), m.loadPanels(m.symbol))

	case "ticker_selected":
		// Another client switched the session; follow it.
		if evt.Symbol != "" && evt.Symbol != m.symbol {
			m.symbol = evt.Symbol
			if idx := indexOf(m.dash.Tickers, evt.Symbol); idx >= 0 {
				m.selected = idx
			}
			m.clearPanels()
			cmds = append(cmds, m.loadPanels(evt.Symbol))
		}

	case "favorites_changed":
		m.dash.Favorites = evt.Favorites
	}

	if m.ready && !m.heatmapMode {
		m.viewport.SetContent(m.renderContent())
	}
	return m, tea.Batch(cmds...)
}

// switchTicker moves the local selection and, when tellServer is set,
// pushes the change into the server session.
func (m *model) switchTicker(symbol string, tellServer bool) tea.Cmd {
	m.symbol = symbol
	m.dash.Ticker = symbol
	m.clearPanels()
	if m.ready {
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
	}

	cmds := []tea.Cmd{m.loadPanels(symbol)}
	if tellServer {
		c := m.client
		cmds = append(cmds, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return selectMsg{symbol: symbol, err: c.SelectTicker(ctx, symbol)}
		})
	}
	return tea.Batch(cmds...)
}

// toggleFavorite flips the favorite state optimistically; favToggleMsg
// reverts on failure.
func (m *model) toggleFavorite(symbol string) tea.Cmd {
	c := m.client
	if indexOf(m.dash.Favorites, symbol) >= 0 {
		m.dash.Favorites = removeString(m.dash.Favorites, symbol)
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return favToggleMsg{symbol: symbol, added: false, err: c.RemoveFavorite(ctx, symbol)}
		}
	}
	m.dash.Favorites = append(m.dash.Favorites, symbol)
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return favToggleMsg{symbol: symbol, added: true, err: c.AddFavorite(ctx, symbol)}
	}
}

func (m *model) clearPanels() {
	m.quote = nil
	m.history = nil
	m.news = nil
	m.funds = nil
	m.trend = nil
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var headerBar string
	if m.heatmapMode {
		headerText := " Sector Heatmap "
		if m.heatmap != nil && !m.heatmapLoading {
			headerText = fmt.Sprintf(" Sector Heatmap    %d sectors    as of %s ",
				len(m.heatmap.Sectors), m.heatmap.AsOf.Format("15:04:05"))
		}
		headerBar = heatmapStyle.Render(padOrTrunc(headerText, m.width))
	} else {
		state := ""
		if m.running {
			state = fmt.Sprintf("analyzing %d/%d %s", m.done, m.total, spinnerChars[m.spinnerIdx%len(spinnerChars)])
		} else if a := m.dash.LastAnalysis; a != nil && a.Symbol == m.symbol {
			state = display.MoodBadge(domain.Mood(a.Mood))
		}
		headerText := fmt.Sprintf(" MarketMood  %s  %s    articles: %d    %s ",
			m.symbol, m.window(), m.articles, state)
		headerBar = headerStyle.Render(padOrTrunc(headerText, m.width))
	}

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  a analyze  f favorite  up/dn ticker  left/right window  +/- articles  m heatmap  r refresh"
	if m.status != "" {
		footerLeft = " " + m.status
	}
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerText := footerLeft + strings.Repeat(" ", gap) + footerRight
	footerBar := footerStyle.Render(padOrTrunc(footerText, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder
	if m.heatmapMode {
		m.renderHeatmap(&b)
		return b.String()
	}
	m.renderTickers(&b)
	m.renderQuote(&b)
	m.renderSentiment(&b)
	m.renderNews(&b)
	m.renderFundamentals(&b)
	m.renderTrend(&b)
	return b.String()
}

func (m model) sectionBar(b *strings.Builder, label string) {
	b.WriteString(sectionStyle.Width(m.width).Render("  " + label))
	b.WriteString("\n")
}

func (m model) renderTickers(b *strings.Builder) {
	m.sectionBar(b, "TICKERS")
	if len(m.dash.Tickers) == 0 {
		b.WriteString(dimStyle.Render("  (no tickers configured)"))
		b.WriteString("\n")
		return
	}
	for i, sym := range m.dash.Tickers {
		hl := i == m.selected
		mark := " "
		style := symbolStyle
		if indexOf(m.dash.Favorites, sym) >= 0 {
			mark = "*"
			style = favSymbolStyle
		}
		line := fmt.Sprintf("  %s %-8s", mark, sym)
		b.WriteString(hlStyle(style, hl).Render(line))
		b.WriteString("\n")
	}
}

func (m model) renderQuote(b *strings.Builder) {
	b.WriteString("\n")
	m.sectionBar(b, "QUOTE")
	q := m.quote
	if q == nil {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	if q.Warning != "" {
		b.WriteString(dimStyle.Render("  " + q.Warning))
		b.WriteString("\n")
		return
	}
	change := opt(q.Change)
	b.WriteString("  ")
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(display.FormatPrice(opt(q.Current))))
	b.WriteString("  ")
	b.WriteString(changeStyle(change).Render(fmt.Sprintf("%s (%s)",
		display.FormatChange(change), display.FormatPct(opt(q.ChangePct)))))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  open %s  high %s  low %s  prev %s",
		display.FormatPrice(opt(q.Open)),
		display.FormatPrice(opt(q.DayHigh)),
		display.FormatPrice(opt(q.DayLow)),
		display.FormatPrice(opt(q.Previous)))))
	b.WriteString("\n")
	if h := m.history; h != nil && !h.NoData && len(h.Series) >= 2 {
		wc := opt(h.Change)
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s window: ", h.Window)))
		b.WriteString(changeStyle(wc).Render(fmt.Sprintf("%s (%s)",
			display.FormatChange(wc), display.FormatPct(opt(h.ChangePct)))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d bars", len(h.Series))))
		b.WriteString("\n")
	}
	if q.Source == "bars" {
		b.WriteString(dimStyle.Render("  (derived from daily bars; live quote unavailable)"))
		b.WriteString("\n")
	}
}

func (m model) renderSentiment(b *strings.Builder) {
	b.WriteString("\n")
	m.sectionBar(b, "SENTIMENT")
	if m.running {
		frac := 0.0
		if m.total > 0 {
			frac = float64(m.done) / float64(m.total)
		}
		b.WriteString(fmt.Sprintf("  %s %d/%d\n", m.prog.ViewAs(frac), m.done, m.total))
		return
	}
	a := m.dash.LastAnalysis
	if a == nil || a.Symbol != m.symbol {
		b.WriteString(dimStyle.Render("  no analysis yet (press a)"))
		b.WriteString("\n")
		return
	}
	b.WriteString("  ")
	b.WriteString(moodStyle(a.Mood).Render(display.MoodBadge(domain.Mood(a.Mood))))
	b.WriteString(dimStyle.Render(fmt.Sprintf("   ran %s", a.RanAt.Format("15:04:05"))))
	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(gainStyle.Render(fmt.Sprintf("%d positive", a.Counts.Positive)))
	b.WriteString("  ")
	b.WriteString(lossStyle.Render(fmt.Sprintf("%d negative", a.Counts.Negative)))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d neutral", a.Counts.Neutral)))
	b.WriteString("\n")
	for _, r := range a.Results {
		dot := display.LabelDot(domain.SentimentLabel(r.Label))
		var style lipgloss.Style
		switch r.Label {
		case "positive":
			style = gainStyle
		case "negative":
			style = lossStyle
		default:
			style = dimStyle
		}
		b.WriteString("  ")
		b.WriteString(style.Render(dot))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %.2f ", r.Confidence)))
		b.WriteString(r.Title)
		b.WriteString("\n")
	}
	for _, warn := range a.Warnings {
		b.WriteString(dimStyle.Render("  warning: " + warn))
		b.WriteString("\n")
	}
}

func (m model) renderNews(b *strings.Builder) {
	b.WriteString("\n")
	m.sectionBar(b, "NEWS")
	n := m.news
	if n == nil {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	if n.Warning != "" {
		b.WriteString(dimStyle.Render("  " + n.Warning))
		b.WriteString("\n")
	}
	if len(n.Articles) == 0 {
		b.WriteString(dimStyle.Render("  no recent articles"))
		b.WriteString("\n")
		return
	}
	for _, a := range n.Articles {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %-16s", a.PublishedAt.Format("01-02 15:04"), a.Source)))
		b.WriteString("  ")
		b.WriteString(a.Title)
		b.WriteString("\n")
	}
}

func (m model) renderFundamentals(b *strings.Builder) {
	b.WriteString("\n")
	m.sectionBar(b, "FUNDAMENTALS")
	f := m.funds
	if f == nil {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	if f.Warning != "" {
		b.WriteString(dimStyle.Render("  " + f.Warning))
		b.WriteString("\n")
		return
	}
	rows := []struct{ label, value string }{
		{"market cap", display.FormatCompact(opt(f.MarketCap))},
		{"p/e", display.FormatPrice(opt(f.PE))},
		{"dividend yield", display.FormatFraction(opt(f.DividendYield))},
		{"avg volume", display.FormatCompact(opt(f.AvgVolume))},
		{"52w high", display.FormatPrice(opt(f.High52Week))},
		{"52w low", display.FormatPrice(opt(f.Low52Week))},
		{"insiders", display.FormatFraction(opt(f.InsiderPct))},
		{"institutions", display.FormatFraction(opt(f.InstitutionPct))},
	}
	for _, row := range rows {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s", row.label)))
		b.WriteString(row.value)
		b.WriteString("\n")
	}
	if f.Sector != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s", "sector")))
		b.WriteString(f.Sector)
		b.WriteString("\n")
	}
	if f.Note != "" {
		b.WriteString(dimStyle.Render("  " + f.Note))
		b.WriteString("\n")
	}
}

func (m model) renderTrend(b *strings.Builder) {
	b.WriteString("\n")
	m.sectionBar(b, "MOOD TREND")
	t := m.trend
	if t == nil {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	if len(t.Days) == 0 {
		b.WriteString(dimStyle.Render("  no archived news days"))
		b.WriteString("\n")
		return
	}
	for _, d := range t.Days {
		b.WriteString(dimStyle.Render("  " + d.Date.Format("2006-01-02") + "  "))
		b.WriteString(moodStyle(d.Mood).Render(fmt.Sprintf("%-10s", display.MoodBadge(domain.Mood(d.Mood)))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d+ %d- %d=",
			d.Counts.Positive, d.Counts.Negative, d.Counts.Neutral)))
		b.WriteString("\n")
	}
}

func (m model) renderHeatmap(b *strings.Builder) {
	if m.heatmapLoading || m.heatmap == nil {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	for _, sector := range m.heatmap.Sectors {
		avg := opt(sector.AvgChangePct)
		label := fmt.Sprintf("  %s  %s", sector.Name, display.FormatPct(avg))
		b.WriteString(sectionStyle.Width(m.width).Render(label))
		b.WriteString("\n")
		for _, tile := range sector.Tiles {
			pct := opt(tile.ChangePct)
			b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-8s", tile.Symbol)))
			b.WriteString(fmt.Sprintf(" %8s  ", display.FormatPrice(opt(tile.Price))))
			b.WriteString(changeStyle(pct).Render(fmt.Sprintf("%8s", display.FormatPct(pct))))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s", display.FormatCompact(opt(tile.MarketCap)))))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(m.heatmap.Skipped) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  skipped (no quote): %s", strings.Join(m.heatmap.Skipped, " "))))
		b.WriteString("\n")
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

func removeString(ss []string, s string) []string {
	var out []string
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

func main() {
	server := flag.String("server", "", "marketmood-server base URL (default MARKETMOOD_SERVER or http://localhost:8080)")
	flag.Parse()

	addr := *server
	if addr == "" {
		addr = os.Getenv("MARKETMOOD_SERVER")
	}
	if addr == "" {
		addr = "http://localhost:8080"
	}

	logPath := fmt.Sprintf("/tmp/marketmood-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client := marketmood.NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dash, err := client.Dashboard(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to %s: %v\n", addr, err)
		os.Exit(1)
	}
	logger.Info("connected", "server", addr, "tickers", len(dash.Tickers))

	p := tea.NewProgram(
		initialModel(client, dash, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
