// Package story provides the stories a Tale session can be started with:
// the built-in cave adventure and graphs loaded from YAML documents at startup.
package story

import (
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/dsl"
)

// Node IDs of the cave adventure.
const (
	CaveEntrance    = "entrance"
	CaveInterior    = "cave_interior"
	StrangeSound    = "strange_sound"
	TreasureChest   = "treasure_chest"
	OpenChest       = "open_chest"
	InspectArtifact = "inspect_artifact"
	Battle          = "battle"
	ReturnHome      = "return_home"
	Victory         = "victory"
	Negotiation     = "negotiation"
	ArtifactEnding  = "artifact_ending"
)

// CaveBuilder declares the cave adventure. Callers may extend it before building.
func CaveBuilder() *dsl.Builder {
	b := dsl.New().Entry(CaveEntrance)

	b.Add(CaveEntrance).
		Dialogue("You stand at the entrance of a dark cave. Do you enter?").
		Choice("Enter the cave", CaveInterior).
		Choice("Walk away", ReturnHome)

	b.Add(CaveInterior).
		Dialogue("The cave is cold and eerie. You hear strange noises...").
		Choice("Investigate the strange sound", StrangeSound).
		Choice("Look for treasure", TreasureChest).
		Choice("Leave the cave", ReturnHome)

	b.Add(StrangeSound).
		Dialogue("You decide to investigate the strange sound coming from deeper in the cave.").
		Choice("Follow the sound deeper", Battle).
		Choice("Leave the cave", ReturnHome).
		Choice("Return to the treasure chest", TreasureChest)

	b.Add(TreasureChest).
		Dialogue("You find a treasure chest glowing in the corner.").
		Choice("Open the treasure chest", OpenChest).
		Choice("Ignore the chest and explore further", Battle).
		Choice("Leave the cave", ReturnHome)

	b.Add(OpenChest).
		Dialogue("You open the treasure chest and find a magical artifact!").
		Choice("Take the artifact and leave", ArtifactEnding).
		Choice("Inspect the artifact further", InspectArtifact).
		Choice("Close the chest and leave", ReturnHome)

	b.Add(InspectArtifact).
		Dialogue("Runes flare along the artifact's surface as you turn it in your hands.").
		Choice("Take the artifact and leave", ArtifactEnding).
		Choice("Return to the treasure chest", TreasureChest)

	b.Add(Battle).
		Battle("A wild beast appears! Prepare to fight or flee.").
		Choice("Fight", Victory).
		Choice("Flee", ReturnHome).
		Choice("Attempt to negotiate", Negotiation)

	b.Add(ReturnHome).
		Dialogue("You decide to return home, feeling that adventure is not for you.").
		Ending()

	b.Add(Victory).
		Dialogue("You bravely fight the beast and emerge victorious!").
		Ending()

	b.Add(Negotiation).
		Dialogue("You try to talk to the beast, and it surprisingly agrees to let you pass.").
		Ending()

	b.Add(ArtifactEnding).
		Dialogue("You walk out into the daylight, the artifact humming softly in your pack.").
		Ending()

	return b
}

// Cave builds the cave adventure graph.
func Cave() (*domain.Graph, error) {
	return CaveBuilder().Build()
}

// MustCave builds the cave adventure and panics on a builder defect.
func MustCave() *domain.Graph {
	g, err := Cave()
	if err != nil {
		panic(err)
	}
	return g
}
