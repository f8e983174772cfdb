package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-runewidth"

	"github.com/askyhq/asky/internal/sessions"
)

// pickSession offers an interactive choice between same-named sessions.
// Returns false when not attached to a terminal or the user bails out,
// in which case the ambiguity propagates as an error.
func pickSession(dup *sessions.DuplicateSessionError) (int64, bool) {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return 0, false
	}

	options := make([]huh.Option[int64], 0, len(dup.Sessions))
	for _, c := range dup.Sessions {
		label := fmt.Sprintf("%d  %s", c.ID, runewidth.Truncate(c.Preview, 60, "…"))
		options = append(options, huh.NewOption(label, c.ID))
	}

	var picked int64
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int64]().
			Title(fmt.Sprintf("Multiple sessions named %q — pick one", dup.Name)).
			Options(options...).
			Value(&picked),
	))
	if err := form.Run(); err != nil {
		return 0, false
	}
	return picked, true
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
