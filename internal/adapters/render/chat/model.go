package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campusqa/campusqa-cli/internal/application"
	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

const (
	emptyHistoryNotice = "（空会话，还没有消息）"
	generatingNotice   = "正在生成…"
)

type entry struct {
	unit    ports.RenderUnit
	role    domain.Role
	content string
	failed  bool
	system  bool
}

type turnDoneMsg struct {
	result application.TurnResult
	err    error
}

type historyLoadedMsg struct {
	history domain.SessionHistory
}

type sessionsListedMsg struct {
	summaries []domain.SessionSummary
}

type noticeMsg struct {
	text string
}

type actionFailedMsg struct {
	err error
}

type Model struct {
	ctx        context.Context
	controller *application.TurnController
	sessions   *application.SessionManager
	opts       application.TurnOptions
	styles     styles

	viewport  viewport.Model
	textarea  textarea.Model
	spinner   spinner.Model
	entries   []entry
	unitIndex map[ports.RenderUnit]int
	summaries []domain.SessionSummary

	width  int
	height int
	ready  bool
	err    error
}

func NewModel(ctx context.Context, controller *application.TurnController, sessions *application.SessionManager, opts application.TurnOptions) Model {
	ta := textarea.New()
	ta.Placeholder = "输入问题，回车发送（生成中回车可中断）"
	ta.Prompt = "> "
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return Model{
		ctx:        ctx,
		controller: controller,
		sessions:   sessions,
		opts:       opts,
		styles:     newStyles(),
		textarea:   ta,
		spinner:    sp,
		unitIndex:  map[ports.RenderUnit]int{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadHistoryCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.controller.Cancel("")
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case spinner.TickMsg:
		if !m.controller.InFlight() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case UnitCreatedMsg:
		m.unitIndex[msg.Unit] = len(m.entries)
		m.entries = append(m.entries, entry{unit: msg.Unit, role: msg.Role})
		return m.refreshViewport(), nil

	case UnitUpdatedMsg:
		if idx, ok := m.unitIndex[msg.Unit]; ok {
			m.entries[idx].content = msg.Content
		}
		return m.refreshViewport(), nil

	case UnitErroredMsg:
		if idx, ok := m.unitIndex[msg.Unit]; ok {
			m.entries[idx].content = msg.Text
			m.entries[idx].failed = true
		}
		return m.refreshViewport(), nil

	case turnDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, domain.ErrTurnInFlight) {
			m.err = msg.err
		}
		return m, nil

	case historyLoadedMsg:
		m = m.replaceTranscript(msg.history)
		return m.refreshViewport(), nil

	case sessionsListedMsg:
		m.summaries = msg.summaries
		m = m.appendSystem(formatSessionList(msg.summaries, m.sessions.ActiveSession()))
		return m.refreshViewport(), nil

	case noticeMsg:
		m = m.appendSystem(msg.text)
		return m.refreshViewport(), nil

	case actionFailedMsg:
		m = m.appendSystem(fmt.Sprintf("操作失败: %v", msg.err))
		return m.refreshViewport(), nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "加载中…"
	}

	header := m.styles.header.Render(fmt.Sprintf("校园问答  会话 %s", shortSessionID(m.sessions.ActiveSession())))

	status := ""
	if m.controller.InFlight() {
		status = fmt.Sprintf("%s 正在检索校园知识库…", m.spinner.View())
	}

	footer := m.styles.footer.Render("回车发送 · 生成中回车中断 · /new /sessions /switch /rename /rm · Esc 退出")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.textarea.View(),
		footer,
	)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	// Enter doubles as the stop control while a turn is running.
	if m.controller.InFlight() {
		m.controller.Cancel("")
		return m, nil
	}

	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	m.textarea.Reset()

	if strings.HasPrefix(input, "/") {
		return m.runCommand(input)
	}

	return m, tea.Batch(m.spinner.Tick, m.startTurnCmd(input))
}

func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	name, arg := parseCommand(input)

	switch name {
	case "new":
		return m, m.createSessionCmd(arg)
	case "sessions":
		return m, m.listSessionsCmd()
	case "switch":
		id, ok := m.resolveSessionArg(arg)
		if !ok {
			m = m.appendSystem("用法: /switch <编号|会话ID>（先用 /sessions 查看编号）")
			return m.refreshViewport(), nil
		}
		return m, m.switchSessionCmd(id)
	case "rename":
		if arg == "" {
			m = m.appendSystem("用法: /rename <新标题>")
			return m.refreshViewport(), nil
		}
		return m, m.renameSessionCmd(arg)
	case "rm":
		return m, m.deleteSessionCmd()
	case "help":
		m = m.appendSystem("命令: /new [标题] 新建会话 · /sessions 列出会话 · /switch 切换 · /rename 重命名 · /rm 删除当前会话")
		return m.refreshViewport(), nil
	default:
		m = m.appendSystem(fmt.Sprintf("未知命令 /%s，输入 /help 查看帮助", name))
		return m.refreshViewport(), nil
	}
}

func (m Model) startTurnCmd(query string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.controller.Run(m.ctx, query, m.opts)
		return turnDoneMsg{result: result, err: err}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		history, err := m.sessions.LoadHistory(m.ctx)
		if err != nil {
			return actionFailedMsg{err: err}
		}
		return historyLoadedMsg{history: history}
	}
}

func (m Model) createSessionCmd(title string) tea.Cmd {
	return func() tea.Msg {
		summary, err := m.sessions.CreateSession(m.ctx, title)
		if err != nil {
			return actionFailedMsg{err: err}
		}
		return historyLoadedMsg{history: domain.SessionHistory{ID: summary.ID}}
	}
}

func (m Model) listSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		summaries, err := m.sessions.RefreshSessions(m.ctx)
		if err != nil {
			return actionFailedMsg{err: err}
		}
		return sessionsListedMsg{summaries: summaries}
	}
}

func (m Model) switchSessionCmd(id domain.SessionID) tea.Cmd {
	return func() tea.Msg {
		history, err := m.sessions.SwitchSession(m.ctx, id)
		if err != nil {
			return actionFailedMsg{err: err}
		}
		return historyLoadedMsg{history: history}
	}
}

func (m Model) renameSessionCmd(title string) tea.Cmd {
	return func() tea.Msg {
		summary, err := m.sessions.RenameSession(m.ctx, m.sessions.ActiveSession(), title)
		if err != nil {
			return actionFailedMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("会话已重命名为「%s」", summary.Title)}
	}
}

func (m Model) deleteSessionCmd() tea.Cmd {
	return func() tea.Msg {
		replacement, err := m.sessions.DeleteSession(m.ctx, m.sessions.ActiveSession())
		if err != nil {
			return actionFailedMsg{err: err}
		}
		if replacement != nil {
			return historyLoadedMsg{history: domain.SessionHistory{ID: replacement.ID}}
		}
		return noticeMsg{text: "会话已删除"}
	}
}

// resolveSessionArg accepts either a 1-based index into the last /sessions
// listing or a raw session id.
func (m Model) resolveSessionArg(arg string) (domain.SessionID, bool) {
	if arg == "" {
		return "", false
	}

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(m.summaries) {
			return "", false
		}
		return m.summaries[n-1].ID, true
	}

	return domain.SessionID(arg), true
}

func (m Model) replaceTranscript(history domain.SessionHistory) Model {
	m.entries = nil
	m.unitIndex = map[ports.RenderUnit]int{}

	if len(history.Messages) == 0 {
		return m.appendSystem(emptyHistoryNotice)
	}

	for _, message := range history.Messages {
		m.entries = append(m.entries, entry{unit: -1, role: message.Role, content: message.Content})
	}
	return m
}

func (m Model) appendSystem(text string) Model {
	m.entries = append(m.entries, entry{unit: -1, system: true, content: text})
	return m
}

func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	chromeHeight := 4 // header, status, textarea, footer
	viewportHeight := msg.Height - chromeHeight - m.textarea.Height()
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
	m.textarea.SetWidth(msg.Width)

	return m.refreshViewport()
}

func (m Model) refreshViewport() Model {
	if !m.ready {
		return m
	}

	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m
}

func (m Model) renderTranscript() string {
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)

	var blocks []string
	for _, e := range m.entries {
		switch {
		case e.system:
			blocks = append(blocks, m.styles.systemText.Render(e.content))
		case e.failed:
			blocks = append(blocks, m.styles.errorText.Render(e.content))
		case e.role == domain.RoleUser:
			blocks = append(blocks, m.styles.userLabel.Render("你")+"\n"+wrap.Render(e.content))
		case e.content == "" && e.unit >= 0:
			// A live assistant entry with no content yet: still generating.
			blocks = append(blocks, m.styles.assistantLabel.Render("助手")+"\n"+m.styles.systemText.Render(generatingNotice))
		default:
			blocks = append(blocks, m.styles.assistantLabel.Render("助手")+"\n"+wrap.Render(e.content))
		}
	}

	return strings.Join(blocks, "\n\n")
}

func parseCommand(input string) (string, string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, arg, _ := strings.Cut(trimmed, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func formatSessionList(summaries []domain.SessionSummary, active domain.SessionID) string {
	if len(summaries) == 0 {
		return "还没有会话"
	}

	var b strings.Builder
	b.WriteString("会话列表:")
	for i, summary := range summaries {
		marker := "  "
		if summary.ID == active {
			marker = "* "
		}
		title := summary.Title
		if title == "" {
			title = "（未命名）"
		}
		fmt.Fprintf(&b, "\n%s%d. %s  %s（%d 条消息）", marker, i+1, title, shortSessionID(summary.ID), summary.MessageCount)
	}
	return b.String()
}

func shortSessionID(id domain.SessionID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	if s == "" {
		return "-"
	}
	return s
}

// Run starts the chat program and blocks until the user exits.
func Run(ctx context.Context, controller *application.TurnController, sessions *application.SessionManager, renderer *Renderer, opts application.TurnOptions) error {
	p := tea.NewProgram(
		NewModel(ctx, controller, sessions, opts),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	renderer.Attach(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat program: %w", err)
	}
	return nil
}
