package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ecoleta/client"
	"ecoleta/form"

	"github.com/spf13/cobra"
)

// staticPosition stands in for device geolocation on the command line.
type staticPosition struct {
	lat, lon float64
}

func (p staticPosition) CurrentPosition(context.Context) (float64, float64, error) {
	return p.lat, p.lon, nil
}

var createPointOpts struct {
	apiURL   string
	token    string
	name     string
	email    string
	whatsapp string
	uf       string
	city     string
	lat      float64
	lon      float64
	items    []int64
}

var createPointCmd = &cobra.Command{
	Use:   "create-point",
	Short: "Register a collection point through the API",
	Long:  `Loads the item catalog and the IBGE state list, selects the state and city, toggles the requested items and submits the point to a running Ecoleta API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := createPointOpts
		api := client.NewAPIClient(o.apiURL, client.WithToken(o.token))
		locations := client.NewLocationClient(cfg.IBGEURL, nil)
		f := form.New(staticPosition{lat: o.lat, lon: o.lon}, api, locations, api)
		return runCreatePoint(cmd.Context(), f, cmd.OutOrStdout())
	},
}

func runCreatePoint(ctx context.Context, f *form.Form, out io.Writer) error {
	o := createPointOpts

	if err := f.Load(ctx); err != nil {
		return err
	}
	view := f.View()

	uf := strings.ToUpper(strings.TrimSpace(o.uf))
	if !contains(view.UFs, uf) {
		return fmt.Errorf("unknown UF %q", o.uf)
	}
	if err := f.SelectUF(ctx, uf); err != nil {
		return err
	}
	if !contains(f.View().Cities, o.city) {
		slog.Warn("city not found in IBGE directory, sending as typed", "uf", uf, "city", o.city)
	}
	f.SelectCity(o.city)

	for field, value := range map[string]string{"name": o.name, "email": o.email, "whatsapp": o.whatsapp} {
		if err := f.SetField(field, value); err != nil {
			return err
		}
	}

	known := make(map[int64]bool, len(view.Items))
	for _, item := range view.Items {
		known[item.ID] = true
	}
	for _, id := range o.items {
		if !known[id] {
			return fmt.Errorf("item %d is not in the catalog", id)
		}
		if !contains(f.View().SelectedItems, id) {
			f.ToggleItem(id)
		}
	}

	point, err := f.Submit(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(point)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [uf]",
	Short: "List IBGE states, or the cities of one state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locations := client.NewLocationClient(cfg.IBGEURL, nil)
		var (
			names []string
			err   error
		)
		if len(args) == 0 {
			names, err = locations.States(cmd.Context())
		} else {
			names, err = locations.Cities(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func init() {
	flags := createPointCmd.Flags()
	flags.StringVar(&createPointOpts.apiURL, "api", "http://localhost:3333", "Ecoleta API base URL")
	flags.StringVar(&createPointOpts.token, "token", "", "Bearer token when the API requires one")
	flags.StringVar(&createPointOpts.name, "name", "", "Entity name")
	flags.StringVar(&createPointOpts.email, "email", "", "Contact e-mail")
	flags.StringVar(&createPointOpts.whatsapp, "whatsapp", "", "Contact WhatsApp number")
	flags.StringVar(&createPointOpts.uf, "uf", "", "State code (UF)")
	flags.StringVar(&createPointOpts.city, "city", "", "City name")
	flags.Float64Var(&createPointOpts.lat, "lat", 0, "Latitude of the point")
	flags.Float64Var(&createPointOpts.lon, "lon", 0, "Longitude of the point")
	flags.Int64SliceVar(&createPointOpts.items, "items", nil, "Accepted item ids, e.g. 1,3")
	createPointCmd.MarkFlagRequired("name")
	createPointCmd.MarkFlagRequired("uf")
	createPointCmd.MarkFlagRequired("city")
}
