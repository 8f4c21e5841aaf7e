package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"land-portal/land-portal-backend/internal/config"
	"land-portal/land-portal-backend/internal/landclient"
	"land-portal/land-portal-backend/pkg/geospatial"
)

// Shown in place of any listing that could not be loaded
const loadFailedMessage = "Ma'lumotlarni yuklashda xatolik!"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	defaults := config.Default()
	if cfg, err := config.LoadConfig(""); err == nil {
		defaults = cfg
	}

	cmd := &cobra.Command{
		Use:   "landctl",
		Short: "Browse land listings and measure parcels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("api", defaults.Client.BaseURL, "listing API base URL")
	cmd.PersistentFlags().Duration("timeout", defaults.Client.Timeout.Duration, "request timeout")

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newAreaCommand())
	return cmd
}

func newClient(cmd *cobra.Command) *landclient.Client {
	base, _ := cmd.Flags().GetString("api")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return landclient.New(base, landclient.WithHTTPClient(&http.Client{Timeout: timeout}))
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List land listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString("region")
			district, _ := cmd.Flags().GetString("district")

			items, err := newClient(cmd).GetAll(cmd.Context(), region, district)
			if err != nil {
				return loadError(cmd.OutOrStdout(), err)
			}
			printListings(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.SilenceUsage = true
	cmd.Flags().String("region", "", "filter by region, e.g. toshkent")
	cmd.Flags().String("district", "", "filter by district, e.g. yunusobod")
	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one land listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			land, err := newClient(cmd).GetByID(cmd.Context(), args[0])
			if err != nil {
				return loadError(cmd.OutOrStdout(), err)
			}
			printDetail(cmd.OutOrStdout(), land)
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func newAreaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "area <polygon.geojson>",
		Short: "Measure a GeoJSON polygon feature in hectares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read polygon: %w", err)
			}
			feature, err := geospatial.ParseFeature(data)
			if err != nil {
				return err
			}
			hectares, err := geospatial.FeatureAreaHectares(feature)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f ga\n", hectares)
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func loadError(out io.Writer, err error) error {
	if errors.Is(err, landclient.ErrLoadFailed) {
		fmt.Fprintln(out, loadFailedMessage)
	}
	return err
}

func printListings(out io.Writer, items []landclient.Land) {
	if len(items) == 0 {
		fmt.Fprintln(out, "Yer maydonlari topilmadi")
		return
	}
	for _, l := range items {
		fmt.Fprintf(out, "%s  %s\n", l.ID, l.DisplayTitle())
		fmt.Fprintf(out, "  Maydon: %.2f ga  Narx: %.0f so'm/ga\n", l.SelectedArea, l.PricePerHectare)
	}

	area := lo.SumBy(items, func(l landclient.Land) float64 { return l.SelectedArea })
	total := lo.SumBy(items, func(l landclient.Land) float64 { return l.TotalPrice })
	fmt.Fprintf(out, "\nJami: %d ta, %.2f ga, %.0f so'm\n", len(items), area, total)
}

func printDetail(out io.Writer, l *landclient.Land) {
	fmt.Fprintln(out, l.DisplayTitle())
	if l.Location != "" {
		fmt.Fprintf(out, "Manzil: %s\n", l.Location)
	}
	fmt.Fprintf(out, "Maydon: %.2f ga\n", l.SelectedArea)
	fmt.Fprintf(out, "Narx: %.0f so'm/ga\n", l.PricePerHectare)
	fmt.Fprintf(out, "Umumiy narx: %.0f so'm\n", l.TotalPrice)
	if l.Description != "" {
		fmt.Fprintf(out, "\n%s\n", l.Description)
	}
	if l.Polygon != nil {
		if c := geospatial.CalculateCentroid(l.Polygon.Geometry); c != (orb.Point{}) {
			fmt.Fprintf(out, "Markaz: %.5f, %.5f\n", c.Lat(), c.Lon())
		}
	}
	if !l.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Qo'shilgan: %s\n", l.CreatedAt.Format(time.DateOnly))
	}
}
