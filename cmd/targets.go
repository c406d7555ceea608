package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/civicdispatch/app"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/neighborhood"
)

var (
	nearbyLat, nearbyLng, nearbyRadius float64
	asJSON                             bool
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the registered dispatch targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd.Context(), func(_ context.Context, svc *app.Service) error {
			targets := svc.Targets()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), targets)
			}
			return writeTargets(cmd.OutOrStdout(), targets)
		})
	},
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List the targets around a point, nearest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := model.GeoPoint{Lat: nearbyLat, Lng: nearbyLng}
		if err := p.Validate(); err != nil {
			return err
		}
		return withService(cmd.Context(), func(_ context.Context, svc *app.Service) error {
			matches := svc.Nearby(p, nearbyRadius)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), matches)
			}
			return writeMatches(cmd.OutOrStdout(), matches)
		})
	},
}

func init() {
	targetsCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	nearbyCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "latitude")
	nearbyCmd.Flags().Float64Var(&nearbyLng, "lng", 0, "longitude")
	nearbyCmd.Flags().Float64Var(&nearbyRadius, "radius", 0, "radius in km; the configured radius when 0")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(targetsCmd, nearbyCmd)
}

func writeTargets(w io.Writer, targets []model.DispatchTarget) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tEMAIL")
	for _, t := range targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.DisplayName, t.Location, t.ContactEmail)
	}
	return tw.Flush()
}

func writeMatches(w io.Writer, matches []neighborhood.Match) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDISTANCE_KM")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\n", m.Target.ID, m.Target.DisplayName, m.DistanceKm)
	}
	return tw.Flush()
}
