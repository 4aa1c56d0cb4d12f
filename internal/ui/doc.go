// Package ui implements the interactive shelf picker using bubbletea's Elm architecture.
//
// The picker is the save dialog for a single volume:
//  1. [PickerView] : Check or uncheck the main shelves the volume should be on
//  2. [ConfirmView] : Review the adds and removes the selection implies
//  3. [SavingView] : Wait while the changes are applied
//  4. [ResultView] : See which changes succeeded and which failed
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Saving goes through [Library.Apply], so the picker issues exactly the adds and removes that differ from the membership it loaded.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
