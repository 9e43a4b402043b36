package versioning

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// BumpFromCommits derives the increment from conventional commit messages:
// any breaking change is major, any feat is minor, anything else is patch.
// Messages that are not conventional commits count as patch.
func BumpFromCommits(messages []string) Bump {
	machine := parser.NewMachine(
		conventionalcommits.WithTypes(conventionalcommits.TypesConventional),
		conventionalcommits.WithBestEffort(),
	)
	bump := BumpPatch
	for _, msg := range messages {
		parsed, _ := machine.Parse([]byte(strings.TrimSpace(msg)))
		cc, ok := parsed.(*conventionalcommits.ConventionalCommit)
		if !ok || cc == nil {
			continue
		}
		switch {
		case cc.IsBreakingChange():
			return BumpMajor
		case cc.IsFeat():
			bump = BumpMinor
		}
	}
	return bump
}
