package radgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeEmptyGraph(t *testing.T) {
	cats := Categorize(NewEntityGraph())

	assert.Empty(t, cats.Anatomies)
	assert.Empty(t, cats.ObservationsPresent)
	assert.Empty(t, cats.ObservationsAbsent)
	assert.Empty(t, cats.ObservationsUncertain)
	assert.Empty(t, cats.Modifiers)
	assert.Equal(t, 0, cats.Total())
}

func TestCategorizeByTypeAndCertainty(t *testing.T) {
	graph := NewEntityGraph()
	graph.Add(Entity{ID: "1", Text: "opacity", Label: "Observation::definitely present"})
	graph.Add(Entity{ID: "2", Text: "right lower lobe", Label: "Anatomy::NA"})
	graph.Add(Entity{ID: "3", Text: "mild", Label: "Modifier::NA"})
	graph.Add(Entity{ID: "4", Text: "pneumothorax", Label: "Observation::definitely absent"})
	graph.Add(Entity{ID: "5", Text: "pneumonia", Label: "Observation::uncertain"})

	cats := Categorize(graph)

	require.Len(t, cats.ObservationsPresent, 1)
	assert.Equal(t, "opacity", cats.ObservationsPresent[0].Text)
	assert.Equal(t, CertaintyPresent, cats.ObservationsPresent[0].Certainty)

	require.Len(t, cats.Anatomies, 1)
	assert.Equal(t, "right lower lobe", cats.Anatomies[0].Text)
	assert.Empty(t, cats.Anatomies[0].Certainty)

	require.Len(t, cats.Modifiers, 1)
	assert.Equal(t, "mild", cats.Modifiers[0].Text)

	require.Len(t, cats.ObservationsAbsent, 1)
	assert.Equal(t, "pneumothorax", cats.ObservationsAbsent[0].Text)

	require.Len(t, cats.ObservationsUncertain, 1)
	assert.Equal(t, "pneumonia", cats.ObservationsUncertain[0].Text)

	assert.Equal(t, 5, cats.Total())
}

func TestCategorizeUnrecognizedCertaintyDefaultsToPresent(t *testing.T) {
	graph := NewEntityGraph()
	graph.Add(Entity{ID: "1", Text: "opacity", Label: "Observation::maybe"})

	cats := Categorize(graph)

	require.Len(t, cats.ObservationsPresent, 1)
	assert.Equal(t, "opacity", cats.ObservationsPresent[0].Text)
	assert.Empty(t, cats.ObservationsUncertain)
}

func TestCategorizeDropsUnknownTypes(t *testing.T) {
	graph := NewEntityGraph()
	graph.Add(Entity{ID: "1", Text: "something", Label: "Mystery::NA"})

	cats := Categorize(graph)
	assert.Equal(t, 0, cats.Total())
}

func TestCategorizeKeepsRelations(t *testing.T) {
	graph := NewEntityGraph()
	graph.Add(Entity{
		ID:        "1",
		Text:      "opacity",
		Label:     "Observation::definitely present",
		Relations: []Relation{{Type: RelationLocatedAt, TargetID: "2"}},
	})
	graph.Add(Entity{ID: "2", Text: "lung", Label: "Anatomy::NA"})

	cats := Categorize(graph)
	require.Len(t, cats.ObservationsPresent, 1)
	assert.Equal(t, []Relation{{Type: RelationLocatedAt, TargetID: "2"}}, cats.ObservationsPresent[0].Relations)
}
