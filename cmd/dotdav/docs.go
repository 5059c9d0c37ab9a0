package dotdav

import (
	_ "embed"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/dotdav/pkg/style"
)

//go:embed docs/guide.md
var userGuide string

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Show the dotdav user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(renderMarkdown(userGuide))
			return nil
		},
	}
}

// renderMarkdown renders the guide with glamour, falling back to the
// raw text when the terminal cannot take styled output.
func renderMarkdown(content string) string {
	if !style.IsTerminal() {
		return content
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
