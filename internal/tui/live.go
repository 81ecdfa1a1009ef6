package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/scene"
	"github.com/san-kum/rigidsim/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	maxSpeed    = 8
	historySize = 120
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is a live view of a running driver. The driver is stepped on the
// bubbletea goroutine only.
type Model struct {
	driver *sim.Driver
	scene  *scene.Scene
	params sim.StepParams
	limit  int

	paused    bool
	speed     int
	frame     int
	last      engine.UpdateStats
	history   []float64
	err       error
	lastFrame time.Time
	fps       float64
	drops     int

	width  int
	height int
}

// New builds a view over d. limit of zero runs until quit.
func New(d *sim.Driver, sc *scene.Scene, p sim.StepParams, limit int) Model {
	return Model{
		driver:  d,
		scene:   sc,
		params:  p,
		limit:   limit,
		speed:   1,
		history: make([]float64, 0, historySize),
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Err() error { return m.err }

func (m Model) Frame() int { return m.frame }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.paused {
			return m, tick()
		}
		now := time.Time(msg)
		if !m.lastFrame.IsZero() {
			if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
				m.fps = 1.0 / dt
			}
		}
		m.lastFrame = now
		for i := 0; i < m.speed; i++ {
			if err := m.step(); err != nil {
				m.err = err
				return m, tea.Quit
			}
			if m.done() {
				return m, tea.Quit
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "+", "=":
		if m.speed < maxSpeed {
			m.speed++
		}
	case "-":
		if m.speed > 1 {
			m.speed--
		}
	case "s":
		if m.paused {
			if err := m.step(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	case "d":
		if err := m.drop(); err != nil {
			m.err = err
		}
	}
	return m, nil
}

func (m *Model) step() error {
	stats, err := m.driver.StepWith(m.params)
	if err != nil {
		return err
	}
	m.last = stats
	m.frame++
	m.history = append(m.history, stats.KineticEnergy)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
	return nil
}

func (m Model) done() bool {
	return m.limit > 0 && m.frame >= m.limit
}

// drop adds a sphere above the scene.
func (m *Model) drop() error {
	s := m.driver.System()
	if s == nil {
		return sim.ErrClosed
	}
	x := float64(m.drops%9-4) * 2
	id, err := s.CreateBody(engine.BodyCreationSettings{
		Shape:      engine.SphereShape{Radius: 0.5},
		Position:   cp.Vector{X: x, Y: 15},
		MotionType: engine.MotionDynamic,
		Layer:      layers.Moving,
		Mass:       1,
		Friction:   0.6,
		Elasticity: 0.2,
	})
	if err != nil {
		return err
	}
	m.drops++
	if m.scene != nil {
		m.scene.Bodies = append(m.scene.Bodies, id)
	}
	return nil
}

func (m Model) View() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	kind := "custom"
	if m.scene != nil {
		kind = m.scene.Kind
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n\n",
		statusIcon, cyan.Render(kind), statusText,
		dim.Render(fmt.Sprintf("x%d  %.0ffps", m.speed, m.fps))))

	c := m.render()
	rule := dimmer.Render("   " + strings.Repeat("─", c.w))
	b.WriteString(rule + "\n")
	for _, line := range c.lines("   ") {
		b.WriteString(line + "\n")
	}
	b.WriteString(rule + "\n")

	s := m.last
	b.WriteString(fmt.Sprintf("\n   %s %s  %s %s  %s %s  %s %s\n",
		dim.Render("frame"), white.Render(fmt.Sprintf("%d", m.frame)),
		dim.Render("bodies"), white.Render(fmt.Sprintf("%d/%d", s.ActiveBodies, s.Bodies)),
		dim.Render("pairs"), white.Render(fmt.Sprintf("%d", s.BodyPairs)),
		dim.Render("contacts"), white.Render(fmt.Sprintf("%d", s.Contacts))))
	b.WriteString(fmt.Sprintf("   %s %s  %s %s\n",
		dim.Render("KE"), white.Render(fmt.Sprintf("%.2f", s.KineticEnergy)),
		dim.Render("scratch"), white.Render(fmt.Sprintf("%dB", s.ScratchBytes))))
	if s.Errors != 0 {
		b.WriteString("   " + red.Render("errors "+s.Errors.String()) + "\n")
	}
	if m.err != nil {
		b.WriteString("   " + red.Render(m.err.Error()) + "\n")
	}

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("KE"), cyan.Render(sparkline(m.history, 32))))
	}

	b.WriteString("\n" + dim.Render("   space pause  s step  ±speed  d drop  q quit") + "\n")
	return b.String()
}

func (m Model) render() *canvas {
	cw := max(m.width-6, 40)
	ch := max(m.height-12, 10)
	c := newCanvas(cw, ch, -32, -1, 32, 20)

	c.segment(cp.Vector{X: -30, Y: 0.5}, cp.Vector{X: 30, Y: 0.5}, '=')

	s := m.driver.System()
	if s == nil || m.scene == nil {
		return c
	}
	chain := m.scene.Kind == scene.KindChain
	var prev cp.Vector
	for i, id := range m.scene.Bodies {
		p, err := s.Position(id)
		if err != nil {
			continue
		}
		if chain && i < len(m.scene.Bodies)-m.drops {
			if i > 0 {
				c.segment(prev, p, '-')
			}
			prev = p
		}
		c.plot(p, 'o')
	}
	return c
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

// Run blocks until the view quits and returns the first step error.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.err
	}
	return nil
}
