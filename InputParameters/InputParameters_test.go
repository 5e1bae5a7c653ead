package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDofParameters(t *testing.T) {
	fileInput := []byte(`
Title: Refined corner
Dimension: 2
Subdivisions: 3
GlobalRefinements: 1
LocalRefinements: 2
PolynomialOrder: 2
Components: 3
Ranks: 4
Partitioner: metis # or contiguous
Strict: true
`)
	ip := NewDofParameters()
	require.NoError(t, ip.Parse(fileInput))
	assert.Equal(t, "Refined corner", ip.Title)
	assert.Equal(t, 3, ip.Subdivisions)
	assert.Equal(t, 2, ip.LocalRefinements)
	assert.Equal(t, 3, ip.Components)
	assert.Equal(t, "metis", ip.Partitioner)
	assert.True(t, ip.Strict)
	// Defaults survive for keys the file leaves out
	assert.True(t, ip.HangingConstraints)
	ip.Print()

	for _, bad := range []string{
		"Dimension: 3",
		"Subdivisions: 0",
		"LocalRefinements: -1",
		"PolynomialOrder: 0",
		"Components: 0",
		"Ranks: 0",
		"Partitioner: scotch",
	} {
		assert.Error(t, NewDofParameters().Parse([]byte(bad)), bad)
	}
	assert.Error(t, NewDofParameters().Parse([]byte("Ranks: [1, 2]")))
}
