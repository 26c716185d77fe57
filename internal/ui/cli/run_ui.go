package cli

import (
	"context"
	"errors"

	coreapp "svorder/internal/core/app"

	tea "github.com/charmbracelet/bubbletea"
)

// RunUI starts watch mode behind a terminal UI and returns when the user
// quits or ctx ends.
func RunUI(ctx context.Context, app *coreapp.App, inputs []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(), tea.WithAltScreen(), tea.WithContext(ctx))
	app.SetUpdateHandler(func(u coreapp.Update) {
		p.Send(updateMsg{result: u.Result, err: u.Err})
	})

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- app.Watch(ctx, inputs)
		p.Quit()
	}()

	_, err := p.Run()
	cancel()
	if werr := <-watchErr; werr != nil {
		return werr
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
