package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Pick an action by number, or type look / inventory / stats..."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	session      *session.Session
	actions      []engine.Action
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// World selection state
	showWorldModal bool
	worlds         []string
	worldMap       map[string]string
	selectedWorld  int
	loadingWorlds  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int

	// Transient output from shortcut commands
	notice string
}

type worldsLoadedMsg struct {
	worlds   []string
	worldMap map[string]string
	err      error
}

type sessionCreatedMsg struct {
	session *session.Session
	err     error
}

type sessionMsg struct {
	session *session.Session
	err     error
}

type actionsLoadedMsg struct {
	actions []engine.Action
	err     error
}

type actionResultMsg struct {
	outcome *ActionOutcome
	err     error
}

type commandResultMsg struct {
	message string
	err     error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	actionNumberStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")). // purple
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

// NewConsoleUI builds the model. A non-nil resumed session skips the
// world selection modal.
func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, resumed *session.Session) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:         cfg,
		client:         client,
		session:        resumed,
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		ready:          false,
		showWorldModal: resumed == nil,
		loadingWorlds:  resumed == nil,
		selectedWorld:  0,
	}
}

func writeMetadata(s *session.Session) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("Session ID:\n")
	content.WriteString(s.ID.String()[:8] + "...\n\n")

	content.WriteString("World:\n")
	content.WriteString(s.World.Name + "\n\n")

	content.WriteString(fmt.Sprintf("Turn: %d\n", s.Turn))
	if s.Rating != "" {
		content.WriteString(fmt.Sprintf("Rating: %s\n", s.Rating))
	}
	content.WriteString("\n")

	if player, ok := s.World.FindPerson(s.PlayerID); ok {
		location := player.Location
		if place, ok := s.World.FindPlace(player.Location); ok {
			location = place.Name
		}
		content.WriteString("Location:\n")
		content.WriteString(location + "\n\n")

		content.WriteString(fmt.Sprintf("Health: %d/100\n", player.Health))
		content.WriteString(fmt.Sprintf("Energy: %d/100\n\n", player.Energy))

		content.WriteString("Inventory:\n")
		if len(player.Inventory) == 0 {
			content.WriteString("Empty\n")
		} else {
			for _, itemID := range player.Inventory {
				name := itemID
				if item, ok := s.World.FindItem(itemID); ok {
					name = item.Name
				}
				content.WriteString("• " + name + "\n")
			}
		}
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• 3: Take action 3\n")
	content.WriteString("• 3: note - with flavor\n")
	content.WriteString("• look / inventory / stats\n")

	return content.String()
}

// writeChatContent builds the narration panel from session history, the
// current action menu and any transient notice.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURE ENGINE") + "\n\n")
	content.WriteString("Pick numbered actions to play. The narrator answers every move.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	if m.session != nil {
		for _, msg := range m.session.History {
			switch msg.Role {
			case chat.RoleNarrator, chat.RoleSystem:
				formattedMsg := formatNarratorResponse(msg.Content, chatWidth)
				content.WriteString(formattedMsg + "\n\n")
			case chat.RoleUser:
				userMsg := userStyle.Render("You: ") + wordwrap.String(msg.Content, chatWidth-6) + "\n\n"
				content.WriteString(userMsg)
			}
		}
	}

	if m.notice != "" {
		content.WriteString(wordwrap.String(m.notice, chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	} else if len(m.actions) > 0 {
		content.WriteString(m.renderActionMenu(chatWidth))
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// renderActionMenu lists the valid actions with the numbers the player
// answers with.
func (m *ConsoleUI) renderActionMenu(width int) string {
	var menu strings.Builder
	menu.WriteString(titleStyle.Render("Actions") + "\n")
	for i, a := range m.actions {
		desc := a.Description
		if desc == "" {
			desc = string(a.Type)
		}
		line := fmt.Sprintf("%s %s", actionNumberStyle.Render(fmt.Sprintf("%2d.", i+1)), desc)
		menu.WriteString(wordwrap.String(line, width) + "\n")
	}
	menu.WriteString(promptStyle.Render("Answer with a number. Add \": note\" for flavor.") + "\n")
	return menu.String()
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showWorldModal {
		return m.loadWorlds()
	}
	// Resumed session: fetch its action menu straight away.
	return tea.Batch(m.refreshActions(), textarea.Blink)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle world modal first
	if m.showWorldModal {
		return m.updateWorldModal(msg)
	}

	// Handle quit modal second
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		// The viewport component ignores events outside its bounds.
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)

		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		// Resize means reflowing everything for the new width.
		m.ready = true
		m.writeChatContent()
		if m.session != nil {
			m.metaViewport.SetContent(writeMetadata(m.session))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			return m.handleInput(input)
		}

	case actionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.notice = errorStyle.Render("Error: " + msg.err.Error())
		} else {
			m.actions = msg.actions
		}
		m.writeChatContent()

	case actionResultMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.notice = errorStyle.Render("Error: " + msg.err.Error())
			m.writeChatContent()
			return m, nil
		}
		// The server owns history; refresh brings back both sides of the
		// turn along with the new world state.
		m.actions = nil
		return m, tea.Batch(m.refreshSession(), m.refreshActions())

	case commandResultMsg:
		m.loading = false
		if msg.err != nil {
			m.notice = errorStyle.Render("Error: " + msg.err.Error())
		} else {
			m.notice = narratorStyle.Render(msg.message)
		}
		m.writeChatContent()

	case sessionMsg:
		if msg.err == nil && msg.session != nil {
			m.session = msg.session
			m.metaViewport.SetContent(writeMetadata(m.session))
			m.writeChatContent()
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	// Update components for non-mouse events
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// handleInput routes one submitted line: an action number with optional
// ": note" instruction, or a shortcut command answered by the server.
func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()
	m.notice = ""

	if number, instruction, ok := parseActionInput(input); ok {
		if number < 1 || number > len(m.actions) {
			m.notice = errorStyle.Render(fmt.Sprintf("No action %d. Pick 1-%d.", number, len(m.actions)))
			m.writeChatContent()
			return m, nil
		}
		action := m.actions[number-1]

		m.loading = true
		m.progressTick = 0

		// Echo the player's side immediately; the refresh after the
		// result replaces local history with the server's record.
		line := action.Description
		if line == "" {
			line = string(action.Type)
		}
		if instruction != "" {
			line = fmt.Sprintf("%s (%s)", line, instruction)
		}
		m.session.History = append(m.session.History, chat.Message{Role: chat.RoleUser, Content: line})
		m.writeChatContent()

		return m, tea.Batch(m.executeAction(action, instruction), progressTick())
	}

	switch strings.ToLower(input) {
	case "look", "l", "location", "inventory", "i", "stats", "status":
		m.loading = true
		m.progressTick = 0
		m.writeChatContent()
		return m, tea.Batch(m.sendCommand(strings.ToLower(input)), progressTick())
	case "help", "/help":
		m.notice = titleStyle.Render("Help:") + `
• Answer with an action number, e.g. 2
• Add flavor with a colon, e.g. 2: as quietly as I can
• look / inventory / stats describe your situation
• Ctrl+C quits`
		m.writeChatContent()
		return m, nil
	}

	m.notice = errorStyle.Render("Pick an action by number, or use look / inventory / stats.")
	m.writeChatContent()
	return m, nil
}

// parseActionInput splits "3" or "3: carefully" into the 1-based action
// number and the optional instruction.
func parseActionInput(input string) (int, string, bool) {
	numberPart := input
	instruction := ""
	if idx := strings.Index(input, ":"); idx >= 0 {
		numberPart = strings.TrimSpace(input[:idx])
		instruction = strings.TrimSpace(input[idx+1:])
	}

	number, err := strconv.Atoi(numberPart)
	if err != nil {
		return 0, "", false
	}
	return number, instruction, true
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	// If no prefix, we'll add "Narrator: " so reduce available width
	wrapWidth := width
	if !hasPrefix {
		narratorPrefix := AgentName + ": "
		wrapWidth = width - len(narratorPrefix)
	}

	// Wrap the text to the available width
	wrappedResponse := wordwrap.String(response, wrapWidth)
	lines := strings.Split(wrappedResponse, "\n")
	var formattedLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}

	return result
}

func (m ConsoleUI) executeAction(action engine.Action, instruction string) tea.Cmd {
	return func() tea.Msg {
		outcome, err := executeAction(m.client, m.config.APIBaseURL, m.session.ID, action, instruction)
		return actionResultMsg{outcome, err}
	}
}

func (m ConsoleUI) sendCommand(command string) tea.Cmd {
	return func() tea.Msg {
		message, err := sendCommand(m.client, m.config.APIBaseURL, m.session.ID, command)
		return commandResultMsg{message, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		s, err := getSession(m.client, m.config.APIBaseURL, m.session.ID)
		return sessionMsg{s, err}
	}
}

func (m ConsoleUI) refreshActions() tea.Cmd {
	return func() tea.Msg {
		actions, err := listActions(m.client, m.config.APIBaseURL, m.session.ID, m.config.MaxActions)
		return actionsLoadedMsg{actions, err}
	}
}

func (m ConsoleUI) loadWorlds() tea.Cmd {
	return func() tea.Msg {
		names, worldMap, err := listWorlds(m.client, m.config.APIBaseURL)
		return worldsLoadedMsg{names, worldMap, err}
	}
}

func (m ConsoleUI) createSessionFromWorld(worldFile string) tea.Cmd {
	return func() tea.Msg {
		s, err := createSession(m.client, m.config.APIBaseURL, worldFile)
		return sessionCreatedMsg{s, err}
	}
}

func (m ConsoleUI) updateWorldModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case worldsLoadedMsg:
		m.loadingWorlds = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.worlds = msg.worlds
			m.worldMap = msg.worldMap
		}

	case sessionCreatedMsg:
		// Regardless of outcome, we're no longer in the create loading phase
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.showWorldModal = false
			if m.width > 0 && m.height > 0 {
				chatWidth := int(float64(m.width)*0.75) - 4
				metaWidth := m.width - chatWidth - 6
				m.chatViewport.Width = chatWidth - 2
				m.chatViewport.Height = m.height - 7
				m.metaViewport.Width = metaWidth - 2
				m.metaViewport.Height = m.height - 4
				m.textarea.SetWidth(chatWidth - 4)
			}
			m.writeChatContent()
			m.metaViewport.SetContent(writeMetadata(m.session))
			m.textarea.Focus()
			m.ready = true
			return m, tea.Batch(m.refreshActions(), textarea.Blink)
		}
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.loadingWorlds {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.err != nil {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				m.showQuitModal = true
				return m, nil
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedWorld > 0 {
				m.selectedWorld--
			}
		case tea.KeyDown:
			if m.selectedWorld < len(m.worlds)-1 {
				m.selectedWorld++
			}
		case tea.KeyEnter:
			if len(m.worlds) > 0 {
				worldName := m.worlds[m.selectedWorld]
				worldFile := m.worldMap[worldName]
				m.loading = true
				return m, m.createSessionFromWorld(worldFile)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showWorldModal {
					// Still selecting a world, nothing to focus
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderWorldModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loadingWorlds {
		content.WriteString(modalTitleStyle.Render("Loading Worlds..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available worlds..."))
	} else if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load worlds: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if m.loading {
		content.WriteString(modalTitleStyle.Render("Creating Session..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	} else {
		content.WriteString(modalTitleStyle.Render("Select a World"))
		content.WriteString("\n\n")

		for i, world := range m.worlds {
			if i == m.selectedWorld {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", world)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", world)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showWorldModal {
		return m.renderWorldModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"", // Add empty line for spacing
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	// Usable content width: viewport width minus padding used elsewhere
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	// Clamp bar width to a sensible range
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
