// Package render maps the stat bundles into fixed-width ASCII panels and
// assembles them into a single animated SVG document. Rendering is a pure
// function of its inputs; the caller supplies the update timestamp.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/ymgch/github-pokedex/internal/domain"
)

const (
	// lineWidth is the inner panel width between the ║ borders.
	lineWidth = 44
	barBlocks = 20

	// activityWindowDays mirrors the aggregator's trailing window for the
	// "DAYS ACTIVE" gauge label.
	activityWindowDays = 30

	cardSeconds  = 6
	fadeSeconds  = 0.4
	numCards     = 4
	cycleSeconds = cardSeconds * numCards

	svgWidth   = 800
	svgHeight  = 700
	firstLineY = 85
	lineHeight = 20
)

//go:embed templates/pokedex.svg.tmpl
var pokedexTemplate string

var pokedexTmpl = template.Must(
	template.New("pokedex").
		Funcs(template.FuncMap{
			"esc": xmlEscape,
		}).
		Parse(pokedexTemplate),
)

// PanelTheme controls the decorative text of one panel. An empty Description
// keeps the built-in flavor text, which embeds live stat values.
type PanelTheme struct {
	Number      string
	Name        string
	Type        string
	Description string
}

// Theme holds the four panel themes in display order.
type Theme struct {
	Streak       PanelTheme
	Issues       PanelTheme
	Commits      PanelTheme
	PullRequests PanelTheme
}

// DefaultTheme returns the stock Pokédex theme.
func DefaultTheme() Theme {
	return Theme{
		Streak:       PanelTheme{Number: "006", Name: "CHARIZARD", Type: "FIRE"},
		Issues:       PanelTheme{Number: "143", Name: "SNORLAX", Type: "REST"},
		Commits:      PanelTheme{Number: "130", Name: "GYARADOS", Type: "WATER/FLYING"},
		PullRequests: PanelTheme{Number: "132", Name: "DITTO", Type: "TRANSFORM"},
	}
}

// Options configure a render.
type Options struct {
	Theme     Theme
	UpdatedAt time.Time
}

type textLine struct {
	Y     int
	Text  string
	Class string
}

type cardViewModel struct {
	ID       string
	Hidden   bool
	Values   string
	KeyTimes string
	Lines    []textLine
	Arrow    textLine
}

type svgViewModel struct {
	Width        int
	Height       int
	CycleSeconds int
	CardSeconds  int
	Updated      string
	Cards        []cardViewModel
}

// Panels builds the four fixed-width panels in display order. Zero stats
// render as literal "0" so the layout never shifts.
func Panels(s domain.PokedexStats, theme Theme) []domain.RenderedPanel {
	return []domain.RenderedPanel{
		streakPanel(s.Streak, theme.Streak),
		issuesPanel(s.Issues, theme.Issues),
		commitsPanel(s.Commits, theme.Commits),
		pullRequestsPanel(s.PullRequests, theme.PullRequests),
	}
}

// RenderSVG renders the complete four-panel SVG. Identical inputs produce
// byte-identical output.
func RenderSVG(s domain.PokedexStats, opts Options) ([]byte, error) {
	panels := Panels(s, opts.Theme)

	vm := svgViewModel{
		Width:        svgWidth,
		Height:       svgHeight,
		CycleSeconds: cycleSeconds,
		CardSeconds:  cardSeconds,
		Updated:      opts.UpdatedAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
	for i, panel := range panels {
		values, keyTimes := cardAnimation(i)
		card := cardViewModel{
			ID:       slugify(panel.Title),
			Hidden:   i > 0,
			Values:   values,
			KeyTimes: keyTimes,
		}
		y := firstLineY
		for _, line := range panel.Lines {
			card.Lines = append(card.Lines, textLine{Y: y, Text: line, Class: "ascii-text"})
			y += lineHeight
		}
		// Blinking cursor over the ENTRY line (second to last).
		card.Arrow = textLine{
			Y:     y - 2*lineHeight,
			Text:  boxLine(strings.Repeat(" ", lineWidth-2) + "▶ "),
			Class: "ascii-text blink",
		}
		vm.Cards = append(vm.Cards, card)
	}

	var buf bytes.Buffer
	if err := pokedexTmpl.Execute(&buf, vm); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return buf.Bytes(), nil
}

// cardAnimation returns the SMIL opacity values and keyTimes for one card's
// crossfade. Each card fades in over fadeSeconds, holds for its slot, then
// fades out while the next card fades in; the first card is visible at t=0
// and fades back in at the end of the cycle.
func cardAnimation(index int) (values, keyTimes string) {
	fadeFrac := fadeSeconds / cycleSeconds
	cardFrac := float64(cardSeconds) / cycleSeconds

	start := float64(index) * cardFrac
	end := start + cardFrac

	fadeInStart := start
	fadeInEnd := start + fadeFrac
	fadeOutStart := end - fadeFrac
	fadeOutEnd := end

	switch index {
	case 0:
		values = "1;1;0;0;1"
		keyTimes = fmt.Sprintf("0;%.4f;%.4f;%.4f;1", fadeOutStart, fadeOutEnd, 1-fadeFrac)
	case numCards - 1:
		values = "0;0;1;1;0"
		keyTimes = fmt.Sprintf("0;%.4f;%.4f;%.4f;1", fadeInStart, fadeInEnd, fadeOutStart)
	default:
		values = "0;0;1;1;0;0"
		keyTimes = fmt.Sprintf("0;%.4f;%.4f;%.4f;%.4f;1", fadeInStart, fadeInEnd, fadeOutStart, fadeOutEnd)
	}
	return values, keyTimes
}

func streakPanel(s domain.StreakStats, t PanelTheme) domain.RenderedPanel {
	streakPct := clampPct(s.CurrentStreak * 100 / max(s.LongestStreak, 1))
	activePct := s.DaysActive * 100 / activityWindowDays

	desc := description(t, []string{
		" This one's tail flame shows coding",
		" activity! Been keeping the fire",
		fmt.Sprintf(" alive for %d days. Feed it commits", s.CurrentStreak),
		" to keep it happy!",
	})

	return panel(t, 1, []string{
		boxStat("CURRENT FLAME", fmt.Sprintf("%d DAYS", s.CurrentStreak)),
		boxLine(" " + statBar(streakPct)),
		boxBlank(),
		boxStat("LONGEST BLAZE", fmt.Sprintf("%d DAYS", s.LongestStreak)),
		boxLine(" " + strings.Repeat("█", barBlocks)),
		boxBlank(),
		boxStat("DAYS ACTIVE", fmt.Sprintf("%d/%d MONTH", s.DaysActive, activityWindowDays)),
		boxLine(" " + statBar(activePct)),
	}, desc)
}

func issuesPanel(s domain.IssueStats, t PanelTheme) domain.RenderedPanel {
	closeRate := int(math.Round(s.SuccessRate * 100))
	snoozePct := clampPct(s.OpenCount * 100 / max(s.OpenCount+s.ClosedCount, 1))

	desc := description(t, []string{
		" Only wakes up to squash bugs. Has",
		fmt.Sprintf(" dozed off after defeating %d", s.ClosedCount),
		" issues. Currently snoring through",
		fmt.Sprintf(" %d open tickets. Zzz...", s.OpenCount),
	})

	return panel(t, 2, []string{
		boxStat("BUGS SQUASHED", fmt.Sprintf("%d", s.ClosedCount)),
		boxLine(" " + statBar(closeRate)),
		boxBlank(),
		boxStat("SNOOZING ON", fmt.Sprintf("%d TICKETS", s.OpenCount)),
		boxLine(" " + statBar(snoozePct)),
		boxBlank(),
		boxStat("WAKE-UP RATE", fmt.Sprintf("%d%% SUCCESS", closeRate)),
		boxLine(" " + statBar(closeRate)),
	}, desc)
}

func commitsPanel(s domain.CommitStats, t PanelTheme) domain.RenderedPanel {
	commitPct := clampPct(s.TotalEstimate * 100 / max(s.TotalEstimate+500, 1))
	recentPct := clampPct(s.Recent30d * 100 / max(s.TotalEstimate, 1))

	desc := description(t, []string{
		" Started as Magikarp with 0 commits.",
		" Splashed around and evolved! Now a",
		fmt.Sprintf(" mighty %s with %d commits.", title(t.Name), s.TotalEstimate),
		" Keep splashing!",
	})

	return panel(t, 3, []string{
		boxStat("TOTAL SPLASHES", fmt.Sprintf("%d", s.TotalEstimate)),
		boxLine(" " + statBar(commitPct)),
		boxBlank(),
		boxStat("RECENT ACTIVITY", fmt.Sprintf("%d/MONTH", s.Recent30d)),
		boxLine(" " + statBar(recentPct)),
		boxBlank(),
		boxStat("EVOLUTION LVL", t.Name+"!"),
		boxLine(" " + strings.Repeat("█", barBlocks)),
	}, desc)
}

func pullRequestsPanel(s domain.PullRequestStats, t PanelTheme) domain.RenderedPanel {
	mergedPct := clampPct(s.MergedCount * 100 / max(s.OpenedCount, 1))
	openedPct := clampPct(s.OpenedCount * 100 / max(s.OpenedCount+50, 1))
	reviewedPct := clampPct(s.ReviewedEstimate * 100 / max(s.ReviewedEstimate+50, 1))

	desc := description(t, []string{
		" Transforms into whatever the",
		" codebase needs! A true team player.",
		fmt.Sprintf(" Merged %d PRs, opened %d,", s.MergedCount, s.OpenedCount),
		fmt.Sprintf(" reviewed %d. Any coding style!", s.ReviewedEstimate),
	})

	return panel(t, 4, []string{
		boxStat("MERGED FORMS", fmt.Sprintf("%d PRS", s.MergedCount)),
		boxLine(" " + statBar(mergedPct)),
		boxBlank(),
		boxStat("OPENED FORMS", fmt.Sprintf("%d PRS", s.OpenedCount)),
		boxLine(" " + statBar(openedPct)),
		boxBlank(),
		boxStat("REVIEWED", fmt.Sprintf("%d", s.ReviewedEstimate)),
		boxLine(" " + statBar(reviewedPct)),
	}, desc)
}

// panel assembles one full card: header, type line, three stat groups,
// four description lines, and the entry footer. Every card has the same
// number of lines so the four overlays line up exactly.
func panel(t PanelTheme, entry int, statLines, descLines []string) domain.RenderedPanel {
	lines := []string{
		boxTop(),
		boxLine(fmt.Sprintf(" No. %s%s ", t.Number, rightAlign(t.Name, lineWidth-6-utf8.RuneCountInString(t.Number)))),
		boxSeparator(),
		boxBlank(),
		boxLine(" TYPE: " + t.Type),
		boxBlank(),
	}
	lines = append(lines, statLines...)
	lines = append(lines, boxBlank())
	lines = append(lines, descLines...)
	lines = append(lines,
		boxBlank(),
		boxSeparator(),
		boxLine(fmt.Sprintf(" ENTRY %d/%d", entry, numCards)),
		boxBottom(),
	)
	return domain.RenderedPanel{Title: t.Name, Lines: lines}
}

// description returns exactly four panel lines: the theme override wrapped
// to width when set, the built-in flavor text otherwise.
func description(t PanelTheme, fallback []string) []string {
	if t.Description == "" {
		out := make([]string, len(fallback))
		for i, line := range fallback {
			out[i] = boxLine(line)
		}
		return out
	}
	wrapped := wrap(t.Description, lineWidth-2)
	out := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		if i < len(wrapped) {
			out = append(out, boxLine(" "+wrapped[i]))
		} else {
			out = append(out, boxBlank())
		}
	}
	return out
}

func boxTop() string {
	return "╔" + strings.Repeat("═", lineWidth) + "╗"
}

func boxBottom() string {
	return "╚" + strings.Repeat("═", lineWidth) + "╝"
}

func boxSeparator() string {
	return boxLine(" " + strings.Repeat("─", lineWidth-2) + " ")
}

func boxBlank() string {
	return boxLine("")
}

// boxLine pads or truncates content to the inner width, rune-measured.
func boxLine(content string) string {
	runes := []rune(content)
	if len(runes) > lineWidth {
		runes = runes[:lineWidth]
	}
	return "║" + string(runes) + strings.Repeat(" ", lineWidth-len(runes)) + "║"
}

// boxStat renders a line like " LABEL:                    VALUE ".
func boxStat(label, value string) string {
	labelPart := " " + label + ":"
	available := lineWidth - utf8.RuneCountInString(labelPart) - 1
	return boxLine(labelPart + rightAlign(value, available) + " ")
}

// statBar renders a 20-block █/░ gauge for a percentage.
func statBar(percent int) string {
	filled := percent * barBlocks / 100
	if filled < 0 {
		filled = 0
	}
	if filled > barBlocks {
		filled = barBlocks
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barBlocks-filled)
}

func rightAlign(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func clampPct(p int) int {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// title lowercases all but the first rune, e.g. GYARADOS -> Gyarados.
func title(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// wrap word-wraps text to the given rune width.
func wrap(text string, width int) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// slugify turns a panel title into an XML id.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "card"
	}
	return b.String()
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
