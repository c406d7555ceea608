package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kilianp07/civicdispatch/app"
	"github.com/kilianp07/civicdispatch/core/model"
)

// requestFlags are the issue fields shared by dispatch and compose.
type requestFlags struct {
	issueID     string
	title       string
	description string
	category    string
	lat, lng    float64
	reporter    string
	anonymous   bool
	photos      []string
}

func (f *requestFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.issueID, "issue", "", "issue id")
	fs.StringVar(&f.title, "title", "", "issue title")
	fs.StringVar(&f.description, "description", "", "issue description")
	fs.StringVar(&f.category, "category", "", "issue category (roads, lighting, water-supply, cleanliness, public-safety, obstructions)")
	fs.Float64Var(&f.lat, "lat", 0, "issue latitude")
	fs.Float64Var(&f.lng, "lng", 0, "issue longitude")
	fs.StringVar(&f.reporter, "reporter", "", "reporter display name")
	fs.BoolVar(&f.anonymous, "anonymous", false, "hide the reporter name")
	fs.StringSliceVar(&f.photos, "photo", nil, "photo file to attach, repeatable")
}

func (f *requestFlags) request() (model.DispatchRequest, error) {
	cat, err := model.ParseCategory(f.category)
	if err != nil {
		return model.DispatchRequest{}, err
	}
	req := model.DispatchRequest{
		IssueID:             f.issueID,
		Title:               f.title,
		Description:         f.description,
		Category:            cat,
		Location:            model.GeoPoint{Lat: f.lat, Lng: f.lng},
		ReporterDisplayName: f.reporter,
		IsAnonymous:         f.anonymous,
	}
	for _, p := range f.photos {
		b, err := os.ReadFile(p)
		if err != nil {
			return model.DispatchRequest{}, fmt.Errorf("photo: %w", err)
		}
		req.Photos = append(req.Photos, b)
	}
	return req, nil
}

var (
	dispatchFlags    requestFlags
	userLat, userLng float64
	composeFlags     requestFlags
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Submit an issue to every nearby target that covers its category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := dispatchFlags.request()
		if err != nil {
			return err
		}
		// The reporter's position defaults to the issue location.
		loc := req.Location
		if cmd.Flags().Changed("user-lat") {
			loc = model.GeoPoint{Lat: userLat, Lng: userLng}
		}
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			report, err := svc.DispatchIssue(ctx, req, loc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

var composeCmd = &cobra.Command{
	Use:   "compose TARGET_ID",
	Short: "Render the message an issue would produce for one target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := composeFlags.request()
		if err != nil {
			return err
		}
		return withService(cmd.Context(), func(_ context.Context, svc *app.Service) error {
			msg, err := svc.Compose(req, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msg)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history ISSUE_ID",
	Short: "Show the recorded dispatch rounds of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
			entries, err := svc.History(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	dispatchFlags.bind(dispatchCmd.Flags())
	dispatchCmd.Flags().Float64Var(&userLat, "user-lat", 0, "reporter latitude used to find nearby targets")
	dispatchCmd.Flags().Float64Var(&userLng, "user-lng", 0, "reporter longitude used to find nearby targets")
	for _, name := range []string{"issue", "title", "category", "lat", "lng"} {
		_ = dispatchCmd.MarkFlagRequired(name)
	}
	dispatchCmd.MarkFlagsRequiredTogether("user-lat", "user-lng")

	composeFlags.bind(composeCmd.Flags())
	_ = composeCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(dispatchCmd, composeCmd, historyCmd)
}
