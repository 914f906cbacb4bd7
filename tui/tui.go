package tui

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"usertasks/app"
	"usertasks/logging"
	"usertasks/session"
)

type screen int

const (
	screenMain screen = iota
	screenAccount
)

type uiMode int

const (
	modeMenu uiMode = iota
	modeUsername
	modePassword
	modeTaskText
	modeTaskID
)

type pendingAction int

const (
	actionNone pendingAction = iota
	actionRegister
	actionLogin
	actionComplete
	actionReopen
)

const statusReady = "Ready"

// Model is the bubbletea front-end over the same menus the line session shows.
type Model struct {
	svc *app.Service
	log *log.Logger

	screen  screen
	mode    uiMode
	action  pendingAction
	input   textinput.Model
	pending string

	user    string
	ref     app.AccountRef
	userLog *log.Logger

	showTasks bool
	status    string
	statusErr bool
	quitting  bool

	width  int
	height int
}

// NewModel builds the front-end. startupStatus is shown until the first action.
func NewModel(svc *app.Service, startupStatus string, logger *log.Logger) *Model {
	if logger == nil {
		logger = logging.Discard()
	}
	status := strings.TrimSpace(startupStatus)
	if status == "" {
		status = statusReady
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 0

	return &Model{
		svc:    svc,
		log:    logger,
		screen: screenMain,
		mode:   modeMenu,
		ref:    -1,
		input:  ti,
		status: status,
	}
}

// Run starts the full-screen front-end and blocks until the user exits.
func Run(svc *app.Service, startupStatus string, logger *log.Logger, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(NewModel(svc, startupStatus, logger), opts...).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quit()
			return m, tea.Quit
		}
		if m.mode != modeMenu {
			return m, m.updateInputMode(msg)
		}
		if quit := m.updateMenuMode(msg); quit {
			return m, tea.Quit
		}
		if m.mode != modeMenu {
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *Model) updateMenuMode(msg tea.KeyMsg) bool {
	if m.screen == screenAccount {
		m.updateAccountMenu(msg)
		return false
	}

	switch msg.String() {
	case "1":
		m.startInput(actionRegister, modeUsername)
	case "2":
		m.startInput(actionLogin, modeUsername)
	case "3", "q", "esc":
		m.quit()
		return true
	default:
		if msg.Type == tea.KeyRunes {
			m.setStatus(session.MsgInvalidMain, true)
		}
	}
	return false
}

func (m *Model) updateAccountMenu(msg tea.KeyMsg) {
	switch msg.String() {
	case "1":
		m.showTasks = false
		m.startInput(actionNone, modeTaskText)
	case "2":
		m.showTasks = true
		m.setStatus(statusReady, false)
	case "3":
		m.showTasks = true
		m.startInput(actionComplete, modeTaskID)
	case "4":
		m.showTasks = true
		m.startInput(actionReopen, modeTaskID)
	case "5", "esc":
		m.logout()
	default:
		if msg.Type == tea.KeyRunes {
			m.setStatus(session.MsgInvalidUser, true)
		}
	}
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.resetInput()
		m.setStatus("Cancelled", false)
		return nil
	case "enter":
		m.applyInput()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) startInput(action pendingAction, mode uiMode) {
	m.action = action
	m.mode = mode
	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	if mode == modePassword {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
	}
}

func (m *Model) resetInput() {
	m.mode = modeMenu
	m.action = actionNone
	m.pending = ""
	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	m.input.Blur()
}

// applyInput consumes the typed value exactly as entered.
func (m *Model) applyInput() {
	value := m.input.Value()
	switch m.mode {
	case modeUsername:
		action := m.action
		m.startInput(action, modePassword)
		m.pending = value
		return
	case modePassword:
		username := m.pending
		if m.action == actionRegister {
			m.register(username, value)
		} else {
			m.login(username, value)
		}
	case modeTaskText:
		m.addTask(value)
	case modeTaskID:
		m.markTask(value, m.action == actionComplete)
	}
	if m.mode != modeMenu {
		m.resetInput()
	}
}

func (m *Model) register(username, password string) {
	m.resetInput()
	_, err := m.svc.Register(username, password)
	switch {
	case errors.Is(err, app.ErrDuplicateUsername):
		m.log.Info("duplicate registration", "user", username)
		m.setStatus(fmt.Sprintf(session.MsgAlreadyExists, username), true)
	case err != nil:
		m.saveFailed(m.log, err)
	default:
		m.log.Info("registered", "user", username)
		m.setStatus(fmt.Sprintf(session.MsgRegistered, username), false)
	}
}

func (m *Model) login(username, password string) {
	m.resetInput()
	ref, err := m.svc.Authenticate(username, password)
	if err != nil {
		m.log.Info("authentication failed", "user", username)
		m.setStatus(session.MsgBadCredentials, true)
		return
	}
	m.user = username
	m.ref = ref
	m.userLog = logging.ForSession(m.log, username)
	m.userLog.Info("session started")
	m.screen = screenAccount
	m.showTasks = false
	m.setStatus(fmt.Sprintf(session.MsgAuthenticated, username), false)
}

func (m *Model) logout() {
	if m.userLog != nil {
		m.userLog.Info("session ended")
	}
	m.user = ""
	m.ref = -1
	m.userLog = nil
	m.screen = screenMain
	m.showTasks = false
	m.setStatus(session.MsgLoggingOut, false)
}

func (m *Model) addTask(text string) {
	task, err := m.svc.AddTask(m.ref, text)
	if err != nil {
		m.saveFailed(m.userLog, err)
		return
	}
	m.userLog.Debug("task added", "id", task.ID)
	m.setStatus(fmt.Sprintf(session.MsgTaskAdded, text), false)
}

func (m *Model) markTask(raw string, completed bool) {
	id, err := app.ParseTaskID(raw)
	var rangeErr *app.TaskIDRangeError
	switch {
	case errors.As(err, &rangeErr):
		m.setStatus(fmt.Sprintf(session.MsgTaskNotFound, rangeErr.ID), true)
		return
	case err != nil:
		m.setStatus(session.MsgInvalidTaskID, true)
		return
	}
	task, err := m.svc.SetCompletion(m.ref, id, completed)
	switch {
	case errors.Is(err, app.ErrTaskNotFound):
		m.setStatus(fmt.Sprintf(session.MsgTaskNotFound, id), true)
	case err != nil:
		m.saveFailed(m.userLog, err)
	default:
		m.userLog.Debug("task marked", "id", task.ID, "completed", task.Completed)
		m.setStatus(fmt.Sprintf(session.MsgTaskMarked, task.ID, task.Status()), false)
	}
}

func (m *Model) saveFailed(logger *log.Logger, err error) {
	if logger == nil {
		logger = m.log
	}
	logger.Error("persist failed", "err", err)
	m.setStatus(fmt.Sprintf(session.MsgSaveFailed, err), true)
}

func (m *Model) quit() {
	m.quitting = true
	m.resetInput()
	m.setStatus(session.MsgExiting, false)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) View() string {
	if m.quitting {
		return session.MsgExiting + "\n"
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	title := lipgloss.NewStyle().Bold(true).Render("usertasks")
	summary := "not signed in"
	if m.user != "" {
		summary = "signed in as " + m.user
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+summary),
	)

	menu := session.MainMenu
	if m.screen == screenAccount {
		menu = session.UserMenu
	}
	menuBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("39")).
		Padding(0, 1).
		Render(strings.TrimPrefix(menu, "\n"))

	parts := []string{header, menuBox}
	if m.showTasks {
		parts = append(parts, m.renderTasksPanel())
	}

	parts = append(parts, m.renderFooter(m.status, m.styleFor(m.statusErr), m.hint()))

	if label := m.promptLabel(); label != "" {
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render(label)
		parts = append(parts, prompt+m.input.View())
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderTasksPanel() string {
	var body string
	if tasks, err := m.svc.Tasks(m.ref); err != nil {
		body = fmt.Sprintf(session.MsgUnexpectedError, err)
	} else {
		body = session.RenderTasks(tasks)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(body)
}

func (m *Model) styleFor(isErr bool) lipgloss.Style {
	if isErr {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
}

func (m *Model) promptLabel() string {
	switch m.mode {
	case modeUsername:
		return session.PromptUsername
	case modePassword:
		return session.PromptPassword
	case modeTaskText:
		return session.PromptTaskText
	case modeTaskID:
		return session.PromptTaskID
	}
	return ""
}

func (m *Model) hint() string {
	switch {
	case m.mode != modeMenu:
		return "enter confirm • esc cancel"
	case m.screen == screenAccount:
		return "1-5 choose • esc logout"
	}
	return "1-3 choose • q quit"
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// One column is left free so the last character never wraps.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = statusReady
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
