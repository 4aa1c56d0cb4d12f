package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/session"
	"github.com/urfave/cli/v3"
)

// AuthLogin signs in through the browser and stores the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("starting Google sign-in")

	if err := r.session.Login(ctx); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	snap := r.session.Snapshot()
	return r.writePlain("✓ Signed in as %s\n", snap.Profile.DisplayName())
}

// AuthLogout clears the stored session. It succeeds when already signed out.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.Logout(); err != nil {
		return fmt.Errorf("sign-out failed: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus restores the stored session and reports it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.Restore(ctx); err != nil {
		r.logger.Debug("restore failed", "error", err)
	}
	snap := r.session.Snapshot()

	if cmd.Bool("json") {
		return r.writeJSON(snap, cmd.Bool("pretty"))
	}
	return r.writeStatus(snap)
}

// AuthRestore restores the stored session, refreshing the token silently when it expired.
func (r *Runner) AuthRestore(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(ctx); err != nil {
		return err
	}
	return r.writeStatus(r.session.Snapshot())
}

func (r *Runner) writeStatus(snap session.Snapshot) error {
	if !snap.IsAuthenticated {
		return r.writePlain("✗ Not signed in\nRun 'shelfx auth login' to sign in.\n")
	}

	r.writePlain("✓ Signed in as %s\n", snap.Profile.DisplayName())
	if snap.Profile.Email != "" {
		r.writePlain("Email: %s\n", snap.Profile.Email)
	}
	if !snap.ExpiresAt.IsZero() {
		r.writePlain("Token expires: %s\n", snap.ExpiresAt.Local().Format(time.RFC1123))
	}
	if !snap.RefreshAt.IsZero() {
		r.writePlain("Next refresh: %s\n", snap.RefreshAt.Local().Format(time.RFC1123))
	}
	return nil
}
