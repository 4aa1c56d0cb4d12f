package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/shelfx/internal/models"
)

var _ list.Item = shelfItem{}

// shelfItem wraps [models.Shelf] with its checkbox state to implement [list.Item].
type shelfItem struct {
	shelf   models.Shelf
	checked bool
	was     bool // Membership when the picker loaded
}

func (i shelfItem) FilterValue() string { return i.shelf.Title }

func (i shelfItem) Title() string {
	box := "[ ]"
	if i.checked {
		box = "[x]"
	}
	return fmt.Sprintf("%s %s", box, i.shelf.Title)
}

func (i shelfItem) Description() string {
	desc := fmt.Sprintf("%d volumes", i.shelf.VolumeCount)
	switch {
	case i.checked && !i.was:
		desc += " • will add"
	case !i.checked && i.was:
		desc += " • will remove"
	}
	return desc
}
