package report

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCoversEveryBuilder(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	defs := c.List()
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
		require.Len(t, d.Fingerprint, 64)
		require.Equal(t, d.ID, d.Builder().ID)
		require.True(t, d.Accepts(FilterFrom))
	}
	require.Equal(t, IDs(), ids)

	orders, ok := c.Get(OrderSales)
	require.True(t, ok)
	require.Equal(t, AudienceFarmer, orders.Audience)
	require.True(t, orders.Accepts(FilterFarmID))
	require.False(t, orders.Accepts(FilterProductID))
}

func TestLoadCatalog(t *testing.T) {
	loyalty := &fstest.MapFile{Data: []byte(`
id: "loyaltyEngagement"
audience: "Admin"
filters: ["from", "to"]
`)}

	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name: "valid with ignored files",
			files: fstest.MapFS{
				"loyalty.yml": loyalty,
				"README.md":   {Data: []byte("# notes")},
				"empty.yaml":  {Data: []byte("# nothing here\n")},
			},
		},
		{
			name:    "no definitions",
			files:   fstest.MapFS{"empty.yaml": {Data: []byte("")}},
			wantErr: "no report definitions found",
		},
		{
			name:    "malformed yaml",
			files:   fstest.MapFS{"bad.yaml": {Data: []byte("id: [unclosed")}},
			wantErr: "parsing definition file bad.yaml",
		},
		{
			name: "duplicate id",
			files: fstest.MapFS{
				"a.yaml": loyalty,
				"b.yaml": loyalty,
			},
			wantErr: "duplicate definition",
		},
		{
			name:    "no builder",
			files:   fstest.MapFS{"x.yaml": {Data: []byte(`{id: "weatherImpact", audience: "admin"}`)}},
			wantErr: "no builder registered",
		},
		{
			name:    "audience mismatch",
			files:   fstest.MapFS{"x.yaml": {Data: []byte(`{id: "orderSales", audience: "admin", filters: ["farm_id"]}`)}},
			wantErr: "does not match its builder",
		},
		{
			name:    "farmer report without farm filter",
			files:   fstest.MapFS{"x.yaml": {Data: []byte(`{id: "orderSales", audience: "farmer", filters: ["from"]}`)}},
			wantErr: "must accept farm_id",
		},
		{
			name:    "unknown filter",
			files:   fstest.MapFS{"x.yaml": {Data: []byte(`{id: "productSales", audience: "admin", filters: ["region"]}`)}},
			wantErr: `unknown filter "region"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := LoadCatalog(tc.files)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			d, ok := c.Get(LoyaltyEngagement)
			require.True(t, ok)
			require.Equal(t, AudienceAdmin, d.Audience)
			require.Equal(t, LoyaltyEngagement, d.Title)
			require.Len(t, c.List(), 1)
		})
	}
}

func TestLoadCatalogDir(t *testing.T) {
	_, err := LoadCatalogDir(t.TempDir() + "/missing")
	require.Error(t, err)

	c, err := LoadCatalogDir("definitions")
	require.NoError(t, err)
	require.Len(t, c.List(), len(IDs()))
}
