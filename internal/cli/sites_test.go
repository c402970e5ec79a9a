package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlrepo "github.com/cascadiahydro/streamsync/internal/infrastructure/repository/sql"
	"github.com/cascadiahydro/streamsync/internal/testutil"
)

func TestResolveSiteColumns_CanonicalHeader(t *testing.T) {
	columns, err := resolveSiteColumns([]string{"site_id", "name", "state_code", "huc_code", "latitude", "longitude", "is_active"})
	require.NoError(t, err)

	assert.Equal(t, 0, columns["site_id"])
	assert.Equal(t, 1, columns["name"])
	assert.Equal(t, 4, columns["latitude"])
	assert.Equal(t, 6, columns["is_active"])
}

func TestResolveSiteColumns_USGSAliases(t *testing.T) {
	columns, err := resolveSiteColumns([]string{"site_no", "station_nm", "huc_cd", "dec_lat_va", "dec_long_va"})
	require.NoError(t, err)

	assert.Equal(t, 0, columns["site_id"])
	assert.Equal(t, 1, columns["name"])
	assert.Equal(t, 2, columns["huc_code"])
	assert.Equal(t, 3, columns["latitude"])
	assert.Equal(t, 4, columns["longitude"])
	_, hasState := columns["state_code"]
	assert.False(t, hasState)
}

func TestResolveSiteColumns_MissingSiteID(t *testing.T) {
	_, err := resolveSiteColumns([]string{"name", "latitude"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "site_id")
}

func TestSiteFromRecord(t *testing.T) {
	columns := map[string]int{"site_id": 0, "name": 1, "latitude": 2, "longitude": 3, "is_active": 4}

	site, err := siteFromRecord([]string{"14211720", "WILLAMETTE RIVER AT PORTLAND, OR", "45.5175", "-122.6690", "true"}, columns, false)
	require.NoError(t, err)

	assert.Equal(t, "14211720", site.SiteID)
	assert.Equal(t, "WILLAMETTE RIVER AT PORTLAND, OR", site.Name)
	assert.InDelta(t, 45.5175, site.Latitude, 0.0001)
	assert.InDelta(t, -122.6690, site.Longitude, 0.0001)
	assert.True(t, site.IsActive)
}

func TestSiteFromRecord_Invalid(t *testing.T) {
	columns := map[string]int{"site_id": 0, "latitude": 1}

	_, err := siteFromRecord([]string{"", "45.5"}, columns, true)
	assert.Error(t, err, "empty site_id must be rejected")

	_, err = siteFromRecord([]string{"14211720", "north-ish"}, columns, true)
	assert.Error(t, err, "unparseable latitude must be rejected")
}

func TestImportSites_RowsFailIndependently(t *testing.T) {
	db, err := testutil.OpenSQLiteTestDB("cli_sites_import")
	require.NoError(t, err)
	defer db.Close()

	repo := sqlrepo.NewSQLSyncRepository(db.Resolver, "cli_sites_import")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	csvData := strings.Join([]string{
		"site_id,name,latitude,longitude",
		"14211720,WILLAMETTE RIVER AT PORTLAND OR,45.5175,-122.6690",
		",MISSING ID,44.0,-121.0",
		"12301933,KOOTENAI RIVER BL LIBBY DAM MT,48.4044,-115.3097",
	}, "\n")

	imported, err := importSites(context.Background(), repo, clock, strings.NewReader(csvData), true)
	assert.Error(t, err, "the malformed row must surface in the aggregated error")
	assert.Equal(t, 2, imported)

	sites, err := repo.FindAllSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "12301933", sites[0].SiteID)
	assert.Equal(t, "14211720", sites[1].SiteID)
	assert.True(t, sites[0].IsActive)
}

func TestImportSites_UpsertKeepsSingleRow(t *testing.T) {
	db, err := testutil.OpenSQLiteTestDB("cli_sites_upsert")
	require.NoError(t, err)
	defer db.Close()

	repo := sqlrepo.NewSQLSyncRepository(db.Resolver, "cli_sites_upsert")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first := "site_id,name\n14211720,OLD NAME\n"
	_, err = importSites(context.Background(), repo, clock, strings.NewReader(first), true)
	require.NoError(t, err)

	second := "site_id,name\n14211720,NEW NAME\n"
	_, err = importSites(context.Background(), repo, clock, strings.NewReader(second), true)
	require.NoError(t, err)

	sites, err := repo.FindAllSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "NEW NAME", sites[0].Name)
}
