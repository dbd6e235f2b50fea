package units

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToPhysicalRoundTrip(t *testing.T) {
	packs := []Packaging{
		{UnitsPerBlister: 1, BlistersPerBox: 1},
		{UnitsPerBlister: 10, BlistersPerBox: 5},
		{UnitsPerBlister: 7, BlistersPerBox: 3},
		{UnitsPerBlister: 12, BlistersPerBox: 1},
		{UnitsPerBlister: 1, BlistersPerBox: 20},
	}
	for _, p := range packs {
		for total := 0; total <= 400; total++ {
			b := ToPhysical(total, p)
			require.Equal(t, total, b.Boxes*p.UnitsPerBox()+b.Blisters*p.UnitsPerBlister+b.Tablets, "pack %+v total %d", p, total)
			require.Equal(t, total, b.Total(p))
			require.GreaterOrEqual(t, b.Blisters, 0)
			require.Less(t, b.Blisters, p.BlistersPerBox)
			require.GreaterOrEqual(t, b.Tablets, 0)
			require.Less(t, b.Tablets, p.UnitsPerBlister)
		}
	}
}

func TestToPhysicalCoercesInvalidPackaging(t *testing.T) {
	b := ToPhysical(17, Packaging{UnitsPerBlister: 0, BlistersPerBox: -3})
	require.Equal(t, Breakdown{Boxes: 17}, b)
}

func TestToPhysicalExample(t *testing.T) {
	b := ToPhysical(123, Packaging{UnitsPerBlister: 10, BlistersPerBox: 5})
	require.Equal(t, Breakdown{Boxes: 2, Blisters: 2, Tablets: 3}, b)
	require.Equal(t, Breakdown{}, ToPhysical(-4, Packaging{UnitsPerBlister: 10, BlistersPerBox: 5}))
}

func TestConversionFactor(t *testing.T) {
	p := Packaging{UnitsPerBlister: 10, BlistersPerBox: 5}
	require.Equal(t, 1, ConversionFactor(FormatTablet, p))
	require.Equal(t, 10, ConversionFactor(FormatBlister, p))
	require.Equal(t, 50, ConversionFactor(FormatBox, p))
	require.Equal(t, 1, ConversionFactor(FormatBox, Packaging{}))
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"tablet":   FormatTablet,
		"Tableta":  FormatTablet,
		" blister": FormatBlister,
		"CAJA":     FormatBox,
		"box":      FormatBox,
	}
	for raw, want := range cases {
		got, err := ParseFormat(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got)
	}
	_, err := ParseFormat("sachet")
	require.ErrorIs(t, err, ErrUnknownFormat)
}
