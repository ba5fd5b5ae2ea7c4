package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/pkg/errors"
)

func TestParseSMILES_Graph(t *testing.T) {
	g, err := ParseSMILES("CC(=O)O")
	require.NoError(t, err)

	require.Len(t, g.Atoms, 4)
	require.Len(t, g.Bonds, 3)
	assert.Equal(t, 2, g.Bonds[1].Order)
	assert.Equal(t, 3, g.Degree(1))
	assert.Equal(t, 3, g.Atoms[0].HCount)
	assert.Equal(t, 0, g.Atoms[2].HCount)
	assert.Equal(t, 1, g.Atoms[3].HCount)
	assert.Equal(t, 2, g.CarbonCount())
}

func TestParseSMILES_AromaticRing(t *testing.T) {
	g, err := ParseSMILES("c1ccccc1")
	require.NoError(t, err)

	require.Len(t, g.Bonds, 6)
	for _, b := range g.Bonds {
		assert.True(t, b.Aromatic)
	}
	for i := range g.Atoms {
		assert.Equal(t, 2, g.Degree(i))
		assert.Equal(t, 1, g.Atoms[i].HCount)
	}
	last := g.Bonds[len(g.Bonds)-1]
	assert.Equal(t, 0, last.Other(5))
}

func TestParseSMILES_BracketAtom(t *testing.T) {
	g, err := ParseSMILES("[13CH3][NH3+].[O-2]")
	require.NoError(t, err)

	require.Len(t, g.Atoms, 3)
	assert.Equal(t, Atom{Symbol: "C", Bracket: true, HCount: 3, Isotope: 13}, g.Atoms[0])
	assert.Equal(t, Atom{Symbol: "N", Bracket: true, HCount: 3, Charge: 1}, g.Atoms[1])
	assert.Equal(t, -2, g.Atoms[2].Charge)
	assert.Len(t, g.Bonds, 1)
}

func TestParseSMILES_Invalid(t *testing.T) {
	for _, smiles := range []string{"", "C(", "C1CC", "CC(C)(C)(C)C", "C[Zz]", "C=", "C11"} {
		t.Run(smiles, func(t *testing.T) {
			_, err := ParseSMILES(smiles)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeSMILESInvalid))
		})
	}
}

//Personal.AI order the ending
