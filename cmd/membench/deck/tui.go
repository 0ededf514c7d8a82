package deckcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/report"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

type deckView int

const (
	viewOverview deckView = iota
	viewRun
)

const trackedRunShortcuts = 9

type deckModel struct {
	driver       archive.Driver
	filters      deckFilters
	overview     *deckOverview
	detail       *deckRun
	view         deckView
	cursor       int
	cutoffCursor int
	width        int
	height       int
	sortIndex    int
	statusIndex  int
	trackToggles map[int]bool
	keys         deckKeyMap
	help         help.Model
}

// deckOverview is the filtered, sorted run set the overview renders.
type deckOverview struct {
	Runs []deckRun
}

var (
	deckTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	deckMutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	deckAccentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	deckDimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	deckSectionStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	deckDividerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	deckMetricLabel     = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	deckMetricValue     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	deckHighlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	deckStatusOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	deckStatusFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	deckStatusWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	deckMacroStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	deckMicroStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

var (
	sortOrder     = []string{"recent", "ndcg", "duration", "failures"}
	statusFilters = []string{"", statusClean, statusDegraded, statusEmpty}
)

type deckKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Sort    key.Binding
	Filter  key.Binding
	Track   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k deckKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Sort, k.Filter, k.Track, k.Refresh, k.Quit}
}

func (k deckKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Enter, k.Back}, {k.Sort, k.Filter, k.Track, k.Refresh, k.Quit}}
}

func defaultKeyMap() deckKeyMap {
	return deckKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "drill")),
		Back:    key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "back")),
		Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status")),
		Track:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "runs")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type runLoadedMsg struct {
	run *deckRun
	err error
}

type overviewLoadedMsg struct {
	overview *deckOverview
	err      error
}

func runDeckTUI(ctx context.Context, driver archive.Driver, filters deckFilters) error {
	overview, err := loadOverview(ctx, driver, filters)
	if err != nil {
		return err
	}

	model := newDeckModel(driver, filters, overview)

	if filters.Run != "" {
		record, err := driver.Get(ctx, filters.Run)
		if err != nil {
			return err
		}
		run := newDeckRun(record)
		model.view = viewRun
		model.detail = &run
	}

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

func newDeckModel(driver archive.Driver, filters deckFilters, overview *deckOverview) deckModel {
	toggles := map[int]bool{}
	for i := range trackedRunShortcuts {
		toggles[i] = true
	}

	sortIndex := 0
	for i, sortKey := range sortOrder {
		if sortKey == filters.Sort {
			sortIndex = i
		}
	}

	statusIndex := 0
	for i, status := range statusFilters {
		if status == filters.Status {
			statusIndex = i
		}
	}

	return deckModel{
		driver:       driver,
		filters:      filters,
		overview:     overview,
		view:         viewOverview,
		trackToggles: toggles,
		sortIndex:    sortIndex,
		statusIndex:  statusIndex,
		keys:         defaultKeyMap(),
		help:         help.New(),
	}
}

func (m deckModel) Init() bubbletea.Cmd {
	return nil
}

func (m deckModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case overviewLoadedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.overview = msg.overview
		if m.cursor >= len(m.overview.Runs) {
			m.cursor = clamp(m.cursor, len(m.overview.Runs)-1)
		}
		return m, nil
	case runLoadedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.detail = msg.run
		m.cutoffCursor = 0
		m.view = viewRun
		return m, nil
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m deckModel) View() string {
	switch m.view {
	case viewOverview:
		return m.viewOverview()
	case viewRun:
		return m.viewRun()
	}
	return m.viewOverview()
}

func (m deckModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, bubbletea.Quit
	case "j", "down":
		return m.moveCursor(1)
	case "k", "up":
		return m.moveCursor(-1)
	case "l", "enter":
		if m.view == viewOverview {
			return m.enterRun()
		}
	case "h", "esc":
		if m.view == viewRun {
			m.view = viewOverview
		}
	case "s":
		if m.view == viewOverview {
			return m.cycleSort()
		}
	case "f":
		if m.view == viewOverview {
			return m.cycleStatus()
		}
	case "r":
		if m.view == viewRun && m.detail != nil {
			return m, loadRunCmd(m.driver, m.detail.RunID)
		}
		return m, loadOverviewCmd(m.driver, m.filters)
	}

	if m.view == viewOverview {
		if idx, ok := numberKey(msg.String()); ok {
			m.toggleTrack(idx)
		}
	}

	return m, nil
}

func (m deckModel) moveCursor(delta int) (bubbletea.Model, bubbletea.Cmd) {
	if m.view == viewOverview {
		if len(m.overview.Runs) == 0 {
			return m, nil
		}
		m.cursor = clamp(m.cursor+delta, len(m.overview.Runs)-1)
		return m, nil
	}

	cutoffs := m.detailCutoffs()
	if len(cutoffs) == 0 {
		return m, nil
	}
	m.cutoffCursor = clamp(m.cutoffCursor+delta, len(cutoffs)-1)
	return m, nil
}

func (m deckModel) enterRun() (bubbletea.Model, bubbletea.Cmd) {
	if len(m.overview.Runs) == 0 {
		return m, nil
	}

	run := m.overview.Runs[clamp(m.cursor, len(m.overview.Runs)-1)]
	return m, loadRunCmd(m.driver, run.RunID)
}

func (m deckModel) cycleSort() (bubbletea.Model, bubbletea.Cmd) {
	m.sortIndex = (m.sortIndex + 1) % len(sortOrder)
	m.filters.Sort = sortOrder[m.sortIndex]
	return m, loadOverviewCmd(m.driver, m.filters)
}

func (m deckModel) cycleStatus() (bubbletea.Model, bubbletea.Cmd) {
	m.statusIndex = (m.statusIndex + 1) % len(statusFilters)
	m.filters.Status = statusFilters[m.statusIndex]
	return m, loadOverviewCmd(m.driver, m.filters)
}

func (m deckModel) toggleTrack(idx int) {
	if idx < 0 || idx >= trackedRunShortcuts {
		return
	}
	m.trackToggles[idx] = !m.trackToggles[idx]
}

// detailCutoffs returns the drilled run's cutoffs in ascending order.
func (m deckModel) detailCutoffs() []int {
	if m.detail == nil || m.detail.Retrieval == nil {
		return nil
	}
	cutoffs := make([]int, 0, len(m.detail.Retrieval.Macro))
	for k := range m.detail.Retrieval.Macro {
		cutoffs = append(cutoffs, k)
	}
	sort.Ints(cutoffs)
	return cutoffs
}

func (m deckModel) viewOverview() string {
	if m.overview == nil {
		return deckMutedStyle.Render("no data")
	}

	selected, filtered := m.selectedRuns()
	stats := summarizeRuns(selected)

	benchTime := formatDuration(stats.TotalDuration)
	headerLeft := deckTitleStyle.Render("membench deck")
	headerRight := deckMutedStyle.Render(m.headerRunCount(benchTime, len(selected), len(m.overview.Runs), filtered))
	header := renderHeaderLine(m.width, headerLeft, headerRight)
	lines := make([]string, 0, 10)
	lines = append(lines, header, renderRule(m.width), "")

	lines = append(lines, m.viewMetrics(stats))
	lines = append(lines, "", m.viewDatasetRollup(stats), "", m.viewRunList(), "", m.viewFooter())

	return strings.Join(lines, "\n")
}

func (m deckModel) viewMetrics(stats deckOverviewStats) string {
	avgIndexed := stats.Succeeded / max(1, stats.TotalRuns)
	avgTime := time.Duration(int64(stats.TotalDuration) / int64(max(1, stats.TotalRuns)))

	headers := []string{"CONVERSATIONS", "BENCH TIME", "AVG NDCG", "AVG RECALL", "CLEAN"}
	values := []string{
		fmt.Sprintf("%s ok %s failed", formatCount(stats.Succeeded), formatCount(stats.Failed)),
		formatDuration(stats.TotalDuration),
		formatScore(stats.AvgNDCG, stats.ScoredRuns),
		formatScore(stats.AvgRecall, stats.ScoredRuns),
		formatPercent(stats.CleanRate),
	}
	avgValues := []string{
		fmt.Sprintf("%s avg per run", formatCount(avgIndexed)),
		formatDuration(avgTime) + " avg",
		"worst " + formatScore(stats.WorstNDCG, stats.ScoredRuns),
		"worst " + formatScore(stats.WorstRecall, stats.ScoredRuns),
		fmt.Sprintf("%d/%d runs", stats.Clean, stats.TotalRuns),
	}

	lines := []string{
		renderMetricRow(m.width, headers, deckMetricLabel),
		renderMetricRow(m.width, values, deckMetricValue),
		deckMutedStyle.Render(renderMetricRow(m.width, avgValues, deckMutedStyle)),
	}

	return strings.Join(lines, "\n")
}

func (m deckModel) viewDatasetRollup(stats deckOverviewStats) string {
	if len(stats.ByDataset) == 0 {
		return deckMutedStyle.Render("runs by dataset: no data")
	}

	lines := []string{deckSectionStyle.Render("runs by dataset"), renderRule(m.width)}
	maxRuns := 0
	for _, rollup := range stats.ByDataset {
		if rollup.Runs > maxRuns {
			maxRuns = rollup.Runs
		}
	}

	for _, rollup := range sortedDatasetRollups(stats.ByDataset) {
		bar := renderBar(float64(rollup.Runs), float64(maxRuns), 24)
		ndcg := "-"
		if rollup.ScoredRuns > 0 {
			ndcg = fmt.Sprintf("%.4f", rollup.NDCGSum/float64(rollup.ScoredRuns))
		}
		line := fmt.Sprintf("* %-24s %s %s ndcg  %d runs",
			truncateText(datasetLabel(rollup.Dataset), 24),
			deckAccentStyle.Render(bar),
			ndcg,
			rollup.Runs,
		)
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func (m deckModel) viewRunList() string {
	if len(m.overview.Runs) == 0 {
		return deckMutedStyle.Render("runs: no data")
	}

	status := m.filters.Status
	if status == "" {
		status = "all"
	}
	lines := []string{deckSectionStyle.Render(fmt.Sprintf("runs (sort: %s, status: %s)", m.filters.Sort, status)), renderRule(m.width)}
	lines = append(lines, deckMutedStyle.Render(fmt.Sprintf("    %-16s %-13s %-22s %6s %5s %5s %7s  %s",
		"run", "created", "dataset", "dur", "ok", "fail", "ndcg", "status")))
	for i := range m.overview.Runs {
		run := m.overview.Runs[i]
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		var toggle string
		if i < trackedRunShortcuts {
			if m.trackToggles[i] {
				toggle = strconv.Itoa(i + 1)
			} else {
				toggle = "-"
			}
		} else {
			toggle = " "
		}

		ndcg := "-"
		if scores, _, ok := run.headlineScores(); ok {
			ndcg = fmt.Sprintf("%.4f", scores.NDCG)
		}

		statusStyle := statusStyleFor(run.Status)
		line := fmt.Sprintf("%s %s %-16s %-13s %-22s %6s %5d %5d %7s  %s",
			cursor,
			toggle,
			truncateText(run.RunID, 16),
			run.CreatedAt.Local().Format("Jan 02 15:04"),
			truncateText(datasetLabel(run.Dataset), 22),
			formatDuration(run.Duration),
			run.Succeeded,
			run.Failed,
			ndcg,
			statusStyle.Render(run.Status),
		)

		if i < trackedRunShortcuts && !m.trackToggles[i] {
			line = deckDimStyle.Render(line)
		}
		if i == m.cursor {
			line = deckHighlightStyle.Render(line)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func (m deckModel) viewRun() string {
	if m.detail == nil {
		return deckMutedStyle.Render("no run selected")
	}

	run := m.detail
	statusStyle := statusStyleFor(run.Status)
	statusDot := statusStyle.Render("●")
	headerLeft := deckTitleStyle.Render("⏏ membench deck › " + run.RunID)
	headerRight := deckMutedStyle.Render(fmt.Sprintf("%s · %s %s", run.CreatedAt.Local().Format("Jan 02 15:04"), statusDot, run.Status))
	header := renderHeaderLine(m.width, headerLeft, headerRight)
	lines := make([]string, 0, 20)
	lines = append(lines, header, renderRule(m.width), "")

	lines = append(lines, deckSectionStyle.Render("run"), renderRule(m.width))
	lines = append(lines, deckMutedStyle.Render("DATASET                 DURATION        INDEXED         FAILED          SKIPPED"))
	lines = append(lines, fmt.Sprintf("%-23s %-15s %-15d %-15d %d",
		truncateText(datasetLabel(run.Dataset), 23),
		formatDuration(run.Duration),
		run.Succeeded,
		run.Failed,
		run.Skipped,
	))
	if run.Dataset != "" {
		lines = append(lines, deckMutedStyle.Render("dataset: "+run.Dataset))
	}
	lines = append(lines, deckMutedStyle.Render(configSummary(run.Config)))

	okPercent, failPercent, skipPercent := outcomeSplit(run.Succeeded, run.Failed, run.Skipped)
	lines = append(lines, "")
	lines = append(lines, renderSplitBar("ok  ", okPercent, 26))
	lines = append(lines, renderSplitBar("fail", failPercent, 26))
	lines = append(lines, renderSplitBar("skip", skipPercent, 26))

	lines = append(lines, "")
	lines = append(lines, deckMutedStyle.Render(rateLine(run)))

	screenHeight := m.height
	if screenHeight <= 0 {
		screenHeight = 40
	}
	footerHeight := 2
	remaining := max(screenHeight-len(lines)-footerHeight, 8)
	gap := 3
	leftWidth := max((m.width-gap)*2/3, 30)
	rightWidth := m.width - gap - leftWidth
	if rightWidth < 24 {
		rightWidth = 24
		leftWidth = m.width - gap - rightWidth
	}

	leftBlock := m.renderCutoffBlock(leftWidth, remaining)
	rightBlock := m.renderScoreBlock(rightWidth, remaining)
	lines = append(lines, joinColumns(leftBlock, rightBlock, gap)...)

	lines = append(lines, "", m.viewFooter())

	return strings.Join(lines, "\n")
}

func (m deckModel) viewFooter() string {
	return deckMutedStyle.Render(m.help.View(m.keys))
}

func loadOverviewCmd(driver archive.Driver, filters deckFilters) bubbletea.Cmd {
	return func() bubbletea.Msg {
		overview, err := loadOverview(context.Background(), driver, filters)
		return overviewLoadedMsg{overview: overview, err: err}
	}
}

func loadRunCmd(driver archive.Driver, runID string) bubbletea.Cmd {
	return func() bubbletea.Msg {
		record, err := driver.Get(context.Background(), runID)
		if err != nil {
			return runLoadedMsg{err: err}
		}
		run := newDeckRun(record)
		return runLoadedMsg{run: &run}
	}
}

func sortedDatasetRollups(rollups map[string]datasetRollup) []datasetRollup {
	items := make([]datasetRollup, 0, len(rollups))
	for _, rollup := range rollups {
		items = append(items, rollup)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Runs == items[j].Runs {
			return items[i].Dataset < items[j].Dataset
		}
		return items[i].Runs > items[j].Runs
	})

	return items
}

func numberKey(key string) (int, bool) {
	switch key {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return int(key[0] - '1'), true
	default:
		return 0, false
	}
}

func clamp(value, upper int) int {
	if value < 0 {
		return 0
	}
	if value > upper {
		return upper
	}
	return value
}

func formatScore(value float64, scored int) string {
	if scored == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", value)
}

func formatDuration(value time.Duration) string {
	if value <= 0 {
		return "0s"
	}

	minutes := int(value.Minutes())
	seconds := int(value.Seconds()) % 60
	hours := minutes / 60
	minutes %= 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.0f%%", value*100)
}

func truncateText(value string, limit int) string {
	if lipgloss.Width(value) <= limit {
		return value
	}
	if limit <= 3 {
		return ansi.Truncate(value, limit, "")
	}
	return ansi.Truncate(value, limit, "...")
}

func datasetLabel(path string) string {
	if path == "" {
		return "(unknown)"
	}
	return filepath.Base(path)
}

func renderBar(value, ceiling float64, width int) string {
	if ceiling <= 0 {
		return strings.Repeat("░", width)
	}
	ratio := value / ceiling
	filled := min(max(int(ratio*float64(width)), 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	spacing := lineWidth - leftWidth - rightWidth
	return left + strings.Repeat(" ", spacing) + right
}

func renderRule(width int) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	return deckDividerStyle.Render(strings.Repeat("─", lineWidth))
}

func renderMetricRow(width int, items []string, style lipgloss.Style) string {
	if len(items) == 0 {
		return ""
	}
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	cols := len(items)
	spaceWidth := (cols - 1) * 2
	colWidth := max((lineWidth-spaceWidth)/cols, 12)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, style.Render(fitCell(item, colWidth)))
	}
	return strings.Join(parts, "  ")
}

func fitCell(value string, width int) string {
	if width <= 0 {
		return value
	}
	if lipgloss.Width(value) > width {
		return truncateText(value, width)
	}
	return value + strings.Repeat(" ", width-lipgloss.Width(value))
}

func fitCellRight(value string, width int) string {
	if width <= 0 {
		return value
	}
	if lipgloss.Width(value) >= width {
		return value
	}
	return strings.Repeat(" ", width-lipgloss.Width(value)) + value
}

func statusStyleFor(status string) lipgloss.Style {
	switch status {
	case statusClean:
		return deckStatusOKStyle
	case statusDegraded:
		return deckStatusFailStyle
	case statusEmpty:
		return deckStatusWarnStyle
	default:
		return deckMutedStyle
	}
}

func outcomeSplit(succeeded, failed, skipped int) (float64, float64, float64) {
	total := succeeded + failed + skipped
	if total <= 0 {
		return 0, 0, 0
	}
	return float64(succeeded) / float64(total) * 100,
		float64(failed) / float64(total) * 100,
		float64(skipped) / float64(total) * 100
}

func renderSplitBar(label string, percent float64, width int) string {
	if width <= 0 {
		width = 24
	}
	filled := min(max(int((percent/100)*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s  %2.0f%%", label, bar, percent)
}

func renderSectionDivider(width int, title string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	label := fmt.Sprintf("─── %s ", title)
	remaining := lineWidth - lipgloss.Width(label) - 2
	if remaining < 0 {
		return "  " + label
	}
	return "  " + label + strings.Repeat("─", remaining)
}

func configSummary(cfg *config.Config) string {
	if cfg == nil {
		return "config not archived"
	}

	embed := cfg.Embedding.Model
	if embed == "" {
		embed = cfg.Embedding.Provider
	}

	parts := []string{
		"memory " + cfg.Memory.Provider,
		"embed " + embed,
	}
	if cfg.LLM.Provider != "" {
		parts = append(parts, "llm "+cfg.LLM.Model)
	}
	parts = append(parts, fmt.Sprintf("%d workers", cfg.Benchmark.Workers))

	return strings.Join(parts, " · ")
}

func rateLine(run *deckRun) string {
	conversations := run.Succeeded + run.Failed
	throughput := 0.0
	if minutes := run.Duration.Minutes(); minutes > 0 {
		throughput = float64(conversations) / minutes
	}

	topN := 0
	contextK := 0
	if run.Config != nil {
		topN = int(run.Config.Benchmark.TopN)
		contextK = int(run.Config.Benchmark.ContextK)
	}

	return fmt.Sprintf("throughput: %.1f conv/min    top-n: %d    context-k: %d", throughput, topN, contextK)
}

func (m deckModel) renderCutoffBlock(width, height int) []string {
	lines := []string{renderSectionDivider(width, "retrieval by cutoff")}
	cutoffs := m.detailCutoffs()
	if len(cutoffs) == 0 {
		lines = append(lines, deckMutedStyle.Render("no retrieval metrics"))
		return padLines(lines, width, height)
	}
	if height < 3 {
		height = 3
	}
	maxVisible := max(height-1, 1)

	start, end := visibleRange(len(cutoffs), m.cutoffCursor, maxVisible)
	for i := start; i < end; i++ {
		k := cutoffs[i]
		avgs := m.detail.Retrieval.Macro[k]
		cursor := " "
		if i == m.cutoffCursor {
			cursor = ">"
		}

		line := renderCutoffLine(width, cursor, k, avgs)
		if i == m.cutoffCursor {
			line = deckHighlightStyle.Render(line)
		}

		lines = append(lines, line)
	}

	return padLines(lines, width, height)
}

func renderCutoffLine(width int, cursor string, cutoff int, avgs report.CutoffAverages) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}

	columns := []string{
		fitCell(cursor, 1),
		fitCell(fmt.Sprintf("@%d", cutoff), 5),
		fitCellRight(fmt.Sprintf("ndcg %.4f", avgs.NDCG), 12),
		fitCellRight(fmt.Sprintf("recall %.4f", avgs.Recall), 14),
		fitCellRight(fmt.Sprintf("p %.4f", avgs.Precision), 9),
		fitCellRight(fmt.Sprintf("f1 %.4f", avgs.F1), 10),
	}

	return truncateText(strings.Join(columns, "  "), lineWidth)
}

func (m deckModel) renderScoreBlock(width, height int) []string {
	lines := []string{renderSectionDivider(width, "details | cutoff")}
	cutoffs := m.detailCutoffs()
	if len(cutoffs) == 0 {
		lines = append(lines, deckMutedStyle.Render("no cutoff selected"))
		lines = append(lines, m.generationLines()...)
		return padLines(lines, width, height)
	}
	if height < 3 {
		height = 3
	}

	k := cutoffs[clamp(m.cutoffCursor, len(cutoffs)-1)]
	macro := m.detail.Retrieval.Macro[k]

	lines = append(lines,
		fmt.Sprintf("cutoff: @%d", k),
		scopeLabel("macro"),
		fmt.Sprintf("  ndcg %.4f  recall %.4f", macro.NDCG, macro.Recall),
		fmt.Sprintf("  precision %.4f  f1 %.4f", macro.Precision, macro.F1),
	)

	if micro, ok := m.detail.Retrieval.Micro[k]; ok {
		lines = append(lines,
			scopeLabel("micro"),
			fmt.Sprintf("  ndcg %.4f  recall %.4f", micro.NDCG, micro.Recall),
			fmt.Sprintf("  precision %.4f  f1 %.4f", micro.Precision, micro.F1),
		)
	}

	lines = append(lines, m.generationLines()...)

	return padLines(lines, width, height)
}

func (m deckModel) generationLines() []string {
	gen := m.detail.Generation
	if gen == nil || gen.Count == 0 {
		return []string{"", deckMutedStyle.Render("no generation metrics")}
	}

	lines := []string{
		"",
		deckSectionStyle.Render("generation"),
		fmt.Sprintf("answers: %d", gen.Count),
		fmt.Sprintf("f1 %.4f  bleu-1 %.4f", gen.F1, gen.BLEU1),
		fmt.Sprintf("rouge-1 %.4f  rouge-l %.4f", gen.ROUGE1, gen.ROUGEL),
	}
	if gen.Cosine > 0 {
		lines = append(lines, fmt.Sprintf("cosine %.4f", gen.Cosine))
	}
	return lines
}

func scopeLabel(scope string) string {
	switch scope {
	case "macro":
		return deckMacroStyle.Render("● macro")
	case "micro":
		return deckMicroStyle.Render("○ micro")
	default:
		return scope
	}
}

type deckOverviewStats struct {
	TotalRuns     int
	Succeeded     int
	Failed        int
	Skipped       int
	TotalDuration time.Duration
	ScoredRuns    int
	AvgNDCG       float64
	AvgRecall     float64
	WorstNDCG     float64
	WorstRecall   float64
	Clean         int
	Degraded      int
	Empty         int
	CleanRate     float64
	ByDataset     map[string]datasetRollup
}

type datasetRollup struct {
	Dataset    string
	Runs       int
	Succeeded  int
	ScoredRuns int
	NDCGSum    float64
}

func summarizeRuns(runs []deckRun) deckOverviewStats {
	stats := deckOverviewStats{
		TotalRuns: len(runs),
		ByDataset: map[string]datasetRollup{},
	}

	ndcgSum := 0.0
	recallSum := 0.0
	for _, run := range runs {
		stats.Succeeded += run.Succeeded
		stats.Failed += run.Failed
		stats.Skipped += run.Skipped
		stats.TotalDuration += run.Duration
		switch run.Status {
		case statusClean:
			stats.Clean++
		case statusDegraded:
			stats.Degraded++
		case statusEmpty:
			stats.Empty++
		}

		rollup := stats.ByDataset[run.Dataset]
		rollup.Dataset = run.Dataset
		rollup.Runs++
		rollup.Succeeded += run.Succeeded

		if scores, _, ok := run.headlineScores(); ok {
			ndcgSum += scores.NDCG
			recallSum += scores.Recall
			rollup.NDCGSum += scores.NDCG
			rollup.ScoredRuns++
			if stats.ScoredRuns == 0 || scores.NDCG < stats.WorstNDCG {
				stats.WorstNDCG = scores.NDCG
			}
			if stats.ScoredRuns == 0 || scores.Recall < stats.WorstRecall {
				stats.WorstRecall = scores.Recall
			}
			stats.ScoredRuns++
		}

		stats.ByDataset[run.Dataset] = rollup
	}

	if stats.ScoredRuns > 0 {
		stats.AvgNDCG = ndcgSum / float64(stats.ScoredRuns)
		stats.AvgRecall = recallSum / float64(stats.ScoredRuns)
	}
	if stats.TotalRuns > 0 {
		stats.CleanRate = float64(stats.Clean) / float64(stats.TotalRuns)
	}

	return stats
}

func (m deckModel) selectedRuns() ([]deckRun, bool) {
	if m.overview == nil || len(m.overview.Runs) == 0 {
		return nil, false
	}

	maxVisible := min(trackedRunShortcuts-1, len(m.overview.Runs)-1)
	filtered := false
	for i := 0; i <= maxVisible; i++ {
		if !m.trackToggles[i] {
			filtered = true
			break
		}
	}
	if !filtered {
		return m.overview.Runs, false
	}

	selected := make([]deckRun, 0, maxVisible+1)
	for i := 0; i <= maxVisible; i++ {
		if m.trackToggles[i] {
			selected = append(selected, m.overview.Runs[i])
		}
	}

	return selected, true
}

func (m deckModel) headerRunCount(benchTime string, selected, total int, filtered bool) string {
	if filtered {
		return fmt.Sprintf("%s benched · %d/%d runs", benchTime, selected, total)
	}
	return fmt.Sprintf("%s benched · %d runs", benchTime, total)
}

func formatCount(value int) string {
	str := strconv.Itoa(value)
	if len(str) <= 3 {
		return str
	}
	var parts []string
	for len(str) > 3 {
		parts = append([]string{str[len(str)-3:]}, parts...)
		str = str[:len(str)-3]
	}
	if str != "" {
		parts = append([]string{str}, parts...)
	}
	return strings.Join(parts, ",")
}

func padLines(lines []string, width, height int) []string {
	if height <= 0 {
		return []string{}
	}
	if width <= 0 {
		width = 1
	}
	result := make([]string, 0, height)
	for _, line := range lines {
		result = append(result, padRight(line, width))
		if len(result) >= height {
			return result[:height]
		}
	}
	for len(result) < height {
		result = append(result, strings.Repeat(" ", width))
	}
	return result
}

func padRight(value string, width int) string {
	lineWidth := lipgloss.Width(value)
	if lineWidth >= width {
		return value
	}
	return value + strings.Repeat(" ", width-lineWidth)
}

func joinColumns(left, right []string, gap int) []string {
	maxLines := max(len(right), len(left))
	lines := make([]string, 0, maxLines)
	gapSpace := strings.Repeat(" ", gap)
	for i := range maxLines {
		leftLine := ""
		if i < len(left) {
			leftLine = left[i]
		}
		rightLine := ""
		if i < len(right) {
			rightLine = right[i]
		}
		lines = append(lines, leftLine+gapSpace+rightLine)
	}
	return lines
}

func visibleRange(total, cursor, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	start := max(cursor-(size/2), 0)
	end := start + size
	if end > total {
		end = total
		start = max(end-size, 0)
	}
	return start, end
}
