package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgMembershipLoaded MsgKind = iota
	MsgSaved
)

type membership struct {
	shelves []models.Shelf
	current []models.ShelfID
	err     error
}

// membershipLoadedMsg is the constructor for [MsgMembershipLoaded]
func membershipLoadedMsg(shelves []models.Shelf, current []models.ShelfID, err error) Msg {
	return Msg{kind: MsgMembershipLoaded, data: membership{shelves, current, err}}
}

// savedMsg is the constructor for [MsgSaved]
func savedMsg(result library.ReconcileResult) Msg {
	return Msg{kind: MsgSaved, data: result}
}
