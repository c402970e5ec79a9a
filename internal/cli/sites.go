package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/migration"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

func newSitesCommand(assets Assets, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage the registered gauging stations",
	}
	cmd.AddCommand(
		newSitesImportCommand(assets, opts),
		newSitesListCommand(assets, opts),
	)
	return cmd
}

// siteColumnAliases maps the canonical site columns to the header names
// accepted in import files. The USGS site-inventory export names are included
// so its files import without renaming.
var siteColumnAliases = map[string][]string{
	"site_id":    {"site_id", "site_no"},
	"name":       {"name", "station_nm"},
	"state_code": {"state_code", "state_cd"},
	"huc_code":   {"huc_code", "huc_cd"},
	"latitude":   {"latitude", "dec_lat_va"},
	"longitude":  {"longitude", "dec_long_va"},
	"is_active":  {"is_active", "active"},
}

func newSitesImportCommand(assets Assets, opts *rootOptions) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Register sites from a CSV file",
		Long: `import upserts one site registration per CSV row, keyed by site_id.
The header row names the columns; site_id is required, everything else is
optional. USGS site-inventory header names (site_no, station_nm, huc_cd,
dec_lat_va, dec_long_va) are accepted as aliases. Rows fail independently;
the command reports every bad row and exits non-zero if any failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				repo     repository.SyncRepository
				migrator *migration.Migrator
				clock    clockwork.Clock
			)
			targets := []interface{}{&repo, &migrator, &clock}

			return opts.withApp(cmd.Context(), assets, targets, func(ctx context.Context) error {
				if err := migrator.Up(); err != nil {
					return err
				}

				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open site file: %w", err)
				}
				defer file.Close()

				imported, err := importSites(ctx, repo, clock, file, !inactive)
				if imported > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "imported %d sites\n", imported)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "register the imported sites as inactive")
	return cmd
}

// importSites reads the CSV stream and upserts one site per row. Row errors
// are collected so one malformed line does not abort the rest of the file.
func importSites(ctx context.Context, repo repository.SyncRepository, clock clockwork.Clock, r io.Reader, active bool) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := resolveSiteColumns(header)
	if err != nil {
		return 0, err
	}

	var errs *multierror.Error
	imported, failed := 0, 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d: %w", line, err))
			failed++
			continue
		}

		site, err := siteFromRecord(record, columns, active)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d: %w", line, err))
			failed++
			continue
		}
		now := clock.Now().UTC()
		site.CreatedAt = now
		site.UpdatedAt = now

		if err := repo.SaveSite(ctx, site); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d: failed to save site '%s': %w", line, site.SiteID, err))
			failed++
			continue
		}
		imported++
	}

	logger.Infof("Site import finished: %d imported, %d failed.", imported, failed)
	return imported, errs.ErrorOrNil()
}

// resolveSiteColumns maps canonical column names to their index in the header.
// Only site_id is mandatory.
func resolveSiteColumns(header []string) (map[string]int, error) {
	indexByAlias := make(map[string]int, len(header))
	for i, name := range header {
		indexByAlias[strings.ToLower(strings.TrimSpace(name))] = i
	}

	columns := make(map[string]int)
	for canonical, aliases := range siteColumnAliases {
		for _, alias := range aliases {
			if idx, ok := indexByAlias[alias]; ok {
				columns[canonical] = idx
				break
			}
		}
	}
	if _, ok := columns["site_id"]; !ok {
		return nil, fmt.Errorf("CSV header has no site_id column (header: %s)", strings.Join(header, ","))
	}
	return columns, nil
}

func siteFromRecord(record []string, columns map[string]int, defaultActive bool) (*model.Site, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	siteID := field("site_id")
	if siteID == "" {
		return nil, fmt.Errorf("row has an empty site_id")
	}

	site := &model.Site{
		SiteID:    siteID,
		Name:      field("name"),
		StateCode: field("state_code"),
		HUCCode:   field("huc_code"),
		IsActive:  defaultActive,
	}

	if raw := field("latitude"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("site '%s' has an invalid latitude '%s'", siteID, raw)
		}
		site.Latitude = lat
	}
	if raw := field("longitude"); raw != "" {
		lon, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("site '%s' has an invalid longitude '%s'", siteID, raw)
		}
		site.Longitude = lon
	}
	if raw := field("is_active"); raw != "" {
		isActive, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("site '%s' has an invalid is_active '%s'", siteID, raw)
		}
		site.IsActive = isActive
	}
	return site, nil
}

func newSitesListCommand(assets Assets, opts *rootOptions) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the registered sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				repo     repository.SyncRepository
				migrator *migration.Migrator
			)
			targets := []interface{}{&repo, &migrator}

			return opts.withApp(cmd.Context(), assets, targets, func(ctx context.Context) error {
				if err := migrator.Up(); err != nil {
					return err
				}

				var sites []*model.Site
				var err error
				if activeOnly {
					sites, err = repo.FindActiveSites(ctx, 0)
				} else {
					sites, err = repo.FindAllSites(ctx)
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SITE ID\tNAME\tSTATE\tHUC\tLAT\tLON\tACTIVE")
				for _, site := range sites {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.5f\t%.5f\t%t\n",
						site.SiteID, site.Name, site.StateCode, site.HUCCode,
						site.Latitude, site.Longitude, site.IsActive)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "list only active sites")
	return cmd
}
