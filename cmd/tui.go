package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/ui"
	"github.com/urfave/cli/v3"
)

// pickerLogPath receives log output while the picker owns the terminal.
const pickerLogPath = "./tmp/shelfx-tui.log"

// ShelvesPick launches the interactive save dialog for a volume.
func (r *Runner) ShelvesPick(ctx context.Context, cmd *cli.Command) error {
	volumeID, err := volumeArg(cmd)
	if err != nil {
		return err
	}
	if err := r.requireSession(ctx); err != nil {
		return err
	}

	v := r.lookupVolume(ctx, volumeID)

	// Redirect logs to file to avoid interfering with TUI rendering
	path := pickerLogPath
	if r.config.Log.File != "" {
		path = r.config.Log.File
	}
	fileLogger, closer, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	r.SetLogger(fileLogger)

	lib := library.New(library.Opts{
		Remote:   r.google,
		Identity: r.session,
		Fallback: r.fallback,
		Logger:   fileLogger,
	})
	model := ui.NewModel(ctx, lib, volumeID, v.Info.Title)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if res := model.Result(); res != nil {
		r.writeReconcile(*res)
	}
	return nil
}
