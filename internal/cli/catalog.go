package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vehicle-advisor/internal/domain"
	"vehicle-advisor/internal/repository"
)

var catalogClass string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the normalized candidate pool for a vehicle class",
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := domain.ParseVehicleClass(catalogClass)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pool, err := a.Pools.Load(ctx, class)
		if err != nil {
			return fmt.Errorf("load pool: %w", err)
		}
		return printPool(cmd.OutOrStdout(), pool)
	},
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the postgres catalog table and load the sample catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Postgres == nil {
			return errors.New("catalog seed requires CATALOG_BACKEND=postgres")
		}
		return seedCatalog(ctx, a.Postgres, cmd.OutOrStdout())
	},
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogClass, "class", "bicycle", "vehicle class: bicycle or motorcycle")
	catalogCmd.AddCommand(catalogSeedCmd)
}

type catalogStore interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, class domain.VehicleClass, records []domain.CatalogRecord) error
}

func seedCatalog(ctx context.Context, store catalogStore, out io.Writer) error {
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	sample := repository.SampleCatalog()
	for _, class := range []domain.VehicleClass{domain.Bicycle, domain.Motorcycle} {
		if err := store.Upsert(ctx, class, sample[class]); err != nil {
			return fmt.Errorf("seed %s: %w", class, err)
		}
		fmt.Fprintf(out, "seeded %d %s records\n", len(sample[class]), class)
	}
	return nil
}

func printPool(out io.Writer, pool []domain.Candidate) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tUSE\tBUDGET\tDETAIL")
	for _, c := range pool {
		a := c.Attributes
		detail := strings.Join(nonEmpty(a.Suspension, a.Gears, a.FrameMaterial, a.EngineDisplacement, a.Mileage), ", ")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, a.Type, a.PrimaryUse, a.BudgetTier, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d candidates\n", len(pool))
	return nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
