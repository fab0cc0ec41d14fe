package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	label    string
	value    string
	options  []menuOption
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the interactive menu.
type tuiModel struct {
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
}

// style constants
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(18).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

// menu item indices
const (
	idxApp = iota
	idxSeed
	idxBeats
	idxWordCount
	idxSectionLength
	idxModel
	idxLanguage
	idxTTSEnabled
	idxTTSProvider
	idxTTSVoice
	idxRun // run button, always last
)

// voiceOptionsFor lists the narration voices for a provider, prefixed
// with the default marker where applicable.
func voiceOptionsFor(name string) []menuOption {
	voices, err := provider.AvailableVoices(name)
	if err != nil {
		return []menuOption{{label: "(provider default)", value: ""}}
	}
	opts := []menuOption{{label: "(provider default)", value: ""}}
	for _, v := range voices {
		label := fmt.Sprintf("%s - %s", v.Name, v.Description)
		if v.Default {
			label += " (default)"
		}
		opts = append(opts, menuOption{label: label, value: v.ID})
	}
	return opts
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func buildMenuItems() []menuItem {
	ttsValue := "no"
	if flagTTS {
		ttsValue = "yes"
	}
	ttsProvider := flagTTSProvider
	if ttsProvider == "" {
		ttsProvider = "elevenlabs"
	}

	items := []menuItem{
		{label: "App", value: flagApp, required: true},
		{label: "Seed", value: flagSeed, required: true},
		{
			label: "Beats",
			value: formatInt(flagBeats),
			options: []menuOption{
				{label: "(derive from word count)", value: ""},
				{label: "3 - short arc", value: "3"},
				{label: "5 - compact story", value: "5"},
				{label: "8 - standard story", value: "8"},
				{label: "12 - long-form", value: "12"},
				{label: "20 - maximum", value: "20"},
			},
		},
		{label: "Word Count", value: formatInt(flagWordCount)},
		{
			label: "Section Length",
			value: flagSectionLength,
			options: []menuOption{
				{label: "700-900 (default)", value: ""},
				{label: "400-600 (brisk)", value: "400-600"},
				{label: "900-1200 (expansive)", value: "900-1200"},
			},
		},
		{label: "Model", value: flagModel},
		{
			label: "Language",
			value: flagLanguage,
			options: []menuOption{
				{label: "(app config default)", value: ""},
				{label: "English", value: "en"},
				{label: "German", value: "de"},
				{label: "French", value: "fr"},
				{label: "Spanish", value: "es"},
			},
		},
		{
			label: "Narration",
			value: ttsValue,
			options: []menuOption{
				{label: "No - script only (default)", value: "no"},
				{label: "Yes - synthesize and mix audio", value: "yes"},
			},
		},
		{
			label: "TTS Provider",
			value: ttsProvider,
			options: []menuOption{
				{label: "ElevenLabs (premium voices) (default)", value: "elevenlabs"},
				{label: "Google Cloud TTS (Chirp 3 HD)", value: "google"},
				{label: "Amazon Polly (generative engine)", value: "polly"},
			},
		},
		{
			label:   "TTS Voice",
			value:   flagTTSVoice,
			options: voiceOptionsFor(ttsProvider),
		},
		{label: ">>> Run <<<"},
	}

	// Pre-select cursor position for options
	for i := range items {
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
				break
			}
		}
	}
	return items
}

func initialTUIModel() tuiModel {
	return tuiModel{
		items:  buildMenuItems(),
		cursor: idxApp,
		state:  stateMenu,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) isTextInput(idx int) bool {
	switch idx {
	case idxApp, idxSeed, idxWordCount, idxModel:
		return true
	}
	return false
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor == idxRun {
			if m.items[idxApp].value == "" {
				m.err = fmt.Errorf("App is required")
				return m, nil
			}
			if m.items[idxSeed].value == "" {
				m.err = fmt.Errorf("Seed is required")
				return m, nil
			}
			if m.items[idxBeats].value == "" && m.items[idxWordCount].value == "" {
				m.err = fmt.Errorf("set Beats or Word Count")
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}

		if m.isTextInput(m.cursor) || len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.cursor
	item := &m.items[idx]

	if m.isTextInput(idx) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil
		case "esc":
			item.editing = false
			m.state = stateMenu
			return m, nil
		case "backspace":
			if len(item.value) > 0 {
				item.value = item.value[:len(item.value)-1]
			}
			return m, nil
		case "ctrl+u":
			item.value = ""
			return m, nil
		default:
			if msg.Type == tea.KeyRunes {
				item.value += string(msg.Runes)
			}
			return m, nil
		}
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu

		// Provider changes repopulate the voice catalog.
		if idx == idxTTSProvider {
			m.items[idxTTSVoice].options = voiceOptionsFor(item.value)
			m.items[idxTTSVoice].value = ""
			m.items[idxTTSVoice].cursor = 0
		}

		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "esc":
		item.editing = false
		m.state = stateMenu
		return m, nil

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	title := titleStyle.Render("Storytell")
	b.WriteString(headerBorder.Render(title))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == idxRun {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Run "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Run "))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}

		label := item.label
		if item.required {
			label = label + requiredStyle.Render("*")
		}
		renderedLabel := menuLabelStyle.Render(label)

		var renderedValue string
		if item.editing && m.isTextInput(i) {
			renderedValue = menuValueStyle.Render(item.value + "_")
		} else if item.value == "" {
			placeholder := "(not set)"
			switch i {
			case idxWordCount:
				placeholder = "(optional — derives beats when set alone)"
			case idxModel:
				placeholder = "(app config default)"
			default:
				if len(item.options) > 0 {
					placeholder = item.options[0].label
				}
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		} else {
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		if item.editing && len(item.options) > 0 && !m.isTextInput(i) {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

func runInteractiveSetup() error {
	m := initialTUIModel()

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled {
		return fmt.Errorf("cancelled")
	}
	if !final.confirmed {
		return fmt.Errorf("run cancelled")
	}

	// Apply selections to flags.
	flagApp = final.items[idxApp].value
	flagSeed = final.items[idxSeed].value
	if v := final.items[idxBeats].value; v != "" {
		flagBeats, _ = strconv.Atoi(v)
	}
	if v := final.items[idxWordCount].value; v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("word count must be a number, got %q", v)
		}
		flagWordCount = n
	}
	flagSectionLength = final.items[idxSectionLength].value
	flagModel = final.items[idxModel].value
	flagLanguage = final.items[idxLanguage].value
	flagTTS = final.items[idxTTSEnabled].value == "yes"
	flagTTSProvider = final.items[idxTTSProvider].value
	flagTTSVoice = final.items[idxTTSVoice].value

	return nil
}
