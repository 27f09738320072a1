package model

import (
	"testing"

	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "FLUX.1-schnell", Short("black-forest-labs/FLUX.1-schnell"))
	assert.Equal(t, "local-model", Short("local-model"))
	assert.Equal(t, "", Short("owner/"))
}

func TestLookup(t *testing.T) {
	m, ok := Lookup("black-forest-labs/FLUX.1-schnell")
	require.True(t, ok)
	assert.Equal(t, Default, m)

	_, ok = Lookup("nobody/nothing")
	assert.False(t, ok)
}

func TestCatalogIsUnique(t *testing.T) {
	ids := lo.Map(Catalog, func(m Model, _ int) string { return m.ID })
	assert.Equal(t, len(ids), len(lo.Uniq(ids)))
}

func TestAspectsParse(t *testing.T) {
	for _, a := range Aspects {
		d, err := image.ParseDimensions(a.Token)
		require.NoError(t, err, a.Token)
		assert.Equal(t, a.Token, d.String())
	}
}
