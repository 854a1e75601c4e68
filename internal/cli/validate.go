package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tale/pkg/dsl"
	"github.com/aretw0/tale/pkg/story"
)

// Validate checks the story at path (the cave adventure when empty) and writes a
// report to w. Integrity defects are returned as an error; unreachable nodes are
// only reported.
func Validate(path string, w io.Writer) error {
	b, err := storyBuilder(path)
	if err != nil {
		return err
	}

	g, err := b.Build()
	if err != nil {
		return err
	}

	for _, id := range b.Unreachable() {
		fmt.Fprintf(w, "warning: node '%s' is unreachable from '%s'\n", id, g.Entry().ID)
	}
	fmt.Fprintf(w, "Story is valid: %d nodes, %d endings.\n", g.Len(), len(g.Terminals()))
	return nil
}

func storyBuilder(path string) (*dsl.Builder, error) {
	if path == "" {
		return story.CaveBuilder(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story: %w", err)
	}
	defer f.Close()

	doc, err := story.Decode(f)
	if err != nil {
		return nil, err
	}
	return doc.Builder()
}
