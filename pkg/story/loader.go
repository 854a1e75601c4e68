package story

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/dsl"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a story.
//
//	entry: gate
//	nodes:
//	  gate:
//	    kind: dialogue
//	    text: A locked gate blocks the road.
//	    choices:
//	      - text: Knock
//	        next: guard
type Document struct {
	Entry string              `mapstructure:"entry"`
	Nodes map[string]NodeSpec `mapstructure:"nodes"`
}

// NodeSpec describes a single node in a Document.
type NodeSpec struct {
	Kind    string       `mapstructure:"kind"`
	Text    string       `mapstructure:"text"`
	Choices []ChoiceSpec `mapstructure:"choices"`
}

// ChoiceSpec describes a labeled edge in a Document.
// "to" is accepted as an alias of "next".
type ChoiceSpec struct {
	Text string `mapstructure:"text"`
	Next string `mapstructure:"next"`
	To   string `mapstructure:"to"`
}

// LoadFile reads a YAML story from path.
func LoadFile(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load parses a YAML story and builds its graph. The result passes the same
// integrity check as the built-in stories.
func Load(r io.Reader) (*domain.Graph, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	b, err := doc.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Decode parses the YAML document without building it.
func Decode(r io.Reader) (*Document, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("story document is empty")
		}
		return nil, fmt.Errorf("failed to parse story: %w", err)
	}

	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid story document: %w", err)
	}
	return &doc, nil
}

// Builder converts the document into a dsl.Builder, in stable ID order.
func (d *Document) Builder() (*dsl.Builder, error) {
	if d.Entry == "" {
		return nil, &domain.IntegrityError{Problems: []string{"story document has no entry"}}
	}

	b := dsl.New().Entry(d.Entry)

	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		spec := d.Nodes[id]
		nb := b.Add(id)

		switch domain.Kind(spec.Kind) {
		case domain.KindBattle:
			nb.Battle(spec.Text)
		case domain.KindDialogue, "":
			nb.Dialogue(spec.Text)
		default:
			nb.Dialogue(spec.Text).Kind(domain.Kind(spec.Kind))
		}

		for _, c := range spec.Choices {
			target := c.Next
			if target == "" {
				target = c.To
			}
			nb.Choice(c.Text, target)
		}
	}
	return b, nil
}
