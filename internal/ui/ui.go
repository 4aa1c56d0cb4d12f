package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PickerView ViewState = iota
	ConfirmView
	SavingView
	ResultView
)

// Library is the part of [library.Service] the picker needs.
type Library interface {
	Shelves(ctx context.Context) ([]models.Shelf, error)
	CurrentShelves(ctx context.Context, shelfIDs []models.ShelfID, volumeID string) []models.ShelfID
	Apply(ctx context.Context, volumeID string, current, desired []models.ShelfID) library.ReconcileResult
}

// Model represents the picker state for one volume.
type Model struct {
	ctx      context.Context
	lib      Library
	volumeID string
	title    string
	view     ViewState
	width    int
	height   int
	loading  bool
	ready    bool // shelves has been built
	shelves  list.Model
	current  []models.ShelfID
	result   *library.ReconcileResult
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a picker for volumeID. title is only used for display.
func NewModel(ctx context.Context, lib Library, volumeID, title string) *Model {
	if title == "" {
		title = volumeID
	}
	return &Model{
		ctx:      ctx,
		lib:      lib,
		volumeID: volumeID,
		title:    title,
		view:     PickerView,
		loading:  true,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Result returns the outcome of the last save, or nil if nothing was saved.
func (m *Model) Result() *library.ReconcileResult { return m.result }

// Init loads the shelves and the volume's current membership.
func (m *Model) Init() tea.Cmd {
	return m.loadMembership()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.ready {
			m.shelves.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PickerView:
			return m.handlePickerKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		if key.Matches(msg, m.keys.quit) && msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == PickerView && m.ready && !m.loading {
		var cmd tea.Cmd
		m.shelves, cmd = m.shelves.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgMembershipLoaded:
		data := msg.data.(membership)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.current = data.current

		items := make([]list.Item, len(data.shelves))
		for i, s := range data.shelves {
			on := contains(data.current, s.ID)
			items[i] = shelfItem{shelf: s, checked: on, was: on}
		}
		m.shelves = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.shelves.Title = fmt.Sprintf("Shelves for '%s'", m.title)
		m.shelves.SetFilteringEnabled(false)
		m.shelves.SetShowHelp(false)
		m.shelves.SetSize(m.width-4, m.height-8)
		m.ready = true
		return m, nil

	case MsgSaved:
		result := msg.data.(library.ReconcileResult)
		m.result = &result
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to reload, q to quit", m.err))
	}
	if m.loading {
		return styles.help.Render("Loading shelves...")
	}

	switch m.view {
	case PickerView:
		return m.renderPicker()
	case ConfirmView:
		return m.renderConfirm()
	case SavingView:
		return styles.title.Render("Saving...")
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Desired returns the checked shelves in list order.
func (m *Model) Desired() []models.ShelfID {
	var ids []models.ShelfID
	if !m.ready {
		return ids
	}
	for _, it := range m.shelves.Items() {
		if s := it.(shelfItem); s.checked {
			ids = append(ids, s.shelf.ID)
		}
	}
	return ids
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		m.err = nil
		return m, m.loadMembership()
	}
	if !m.ready || m.loading || m.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.toggle):
		if it, ok := m.shelves.SelectedItem().(shelfItem); ok {
			it.checked = !it.checked
			return m, m.shelves.SetItem(m.shelves.Index(), it)
		}
		return m, nil
	case key.Matches(msg, m.keys.save):
		toAdd, toRemove := library.Diff(m.current, m.Desired())
		if len(toAdd)+len(toRemove) == 0 {
			m.result = &library.ReconcileResult{Outcome: library.NoOp}
			m.view = ResultView
			return m, nil
		}
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.shelves, cmd = m.shelves.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SavingView
		return m, m.save()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PickerView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.view = PickerView
		m.loading = true
		m.result = nil
		return m, m.loadMembership()
	}
	return m, nil
}

func (m *Model) loadMembership() tea.Cmd {
	return func() tea.Msg {
		all, err := m.lib.Shelves(m.ctx)
		if err != nil {
			return membershipLoadedMsg(nil, nil, err)
		}
		shelves := models.FilterMain(all)
		ids := make([]models.ShelfID, len(shelves))
		for i, s := range shelves {
			ids[i] = s.ID
		}
		return membershipLoadedMsg(shelves, m.lib.CurrentShelves(m.ctx, ids, m.volumeID), nil)
	}
}

func (m *Model) save() tea.Cmd {
	current, desired := m.current, m.Desired()
	return func() tea.Msg {
		return savedMsg(m.lib.Apply(m.ctx, m.volumeID, current, desired))
	}
}

func (m *Model) shelfTitle(id models.ShelfID) string {
	if m.ready {
		for _, it := range m.shelves.Items() {
			if s := it.(shelfItem); s.shelf.ID == id {
				return s.shelf.Title
			}
		}
	}
	return id.String()
}

func (m *Model) renderPicker() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.toggle, m.keys.save, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.shelves.View(), helpView)
}

func (m *Model) renderConfirm() string {
	toAdd, toRemove := library.Diff(m.current, m.Desired())

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Save shelves for '%s'?", m.title)))
	b.WriteString("\n")
	for _, id := range toAdd {
		fmt.Fprintf(&b, "\n  %s %s", styles.ok.Render("+"), m.shelfTitle(id))
	}
	for _, id := range toRemove {
		fmt.Fprintf(&b, "\n  %s %s", styles.warn.Render("-"), m.shelfTitle(id))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.reload, m.keys.quit})
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	var title string
	switch m.result.Outcome {
	case library.NoOp:
		title = styles.help.Render("No changes to save")
	case library.Applied:
		title = styles.ok.Render("✓ Shelves saved")
	case library.Partial:
		title = styles.warn.Render(fmt.Sprintf("Saved %d of %d changes", m.result.Succeeded, len(m.result.Changes)))
	default:
		title = styles.err.Render("Could not save shelves")
	}

	var b strings.Builder
	b.WriteString(title)
	for _, c := range m.result.Changes {
		verb := "Added to"
		if !c.Add {
			verb = "Removed from"
		}
		if c.Err != nil {
			fmt.Fprintf(&b, "\n  • %s %s: %s", verb, m.shelfTitle(c.Shelf), styles.err.Render(c.Err.Error()))
		} else {
			fmt.Fprintf(&b, "\n  • %s %s", verb, m.shelfTitle(c.Shelf))
		}
	}
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func contains(ids []models.ShelfID, id models.ShelfID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
