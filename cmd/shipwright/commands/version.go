package commands

import (
	"fmt"

	"git.home.luguber.info/inful/shipwright/internal/config"
)

// PrintVersionCmd implements the 'print-version' command.
type PrintVersionCmd struct{}

func (p *PrintVersionCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	fmt.Println(cfg.Project.Version)
	return nil
}
