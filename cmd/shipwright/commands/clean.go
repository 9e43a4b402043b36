package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/shipwright/internal/engine"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	KeepStore bool `name:"keep-store" help:"Keep the artifact store and run history, collecting unreferenced objects"`
}

func (c *CleanCmd) Run(_ *Global, root *CLI) error {
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.engine.Clean(context.Background(), engine.CleanOptions{KeepStore: c.KeepStore})
	for _, path := range removed {
		fmt.Printf("removed %s\n", path)
	}
	return err
}
