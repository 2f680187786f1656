package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"example.com/fitpulse/internal/auth"
	"example.com/fitpulse/internal/config"
	"example.com/fitpulse/internal/energy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var asJSON bool

	root := &cobra.Command{
		Use:           "fitpulse",
		Short:         "Activity energy model tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(newEstimateCmd(&asJSON))
	root.AddCommand(newClassifyCmd(&asJSON))
	root.AddCommand(newMapTypeCmd(&asJSON))
	root.AddCommand(newKindsCmd(&asJSON))
	root.AddCommand(newTokenCmd())
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type estimateOutput struct {
	Kind         energy.Kind      `json:"kind"`
	Intensity    energy.Intensity `json:"intensity"`
	Minutes      float64          `json:"duration_min"`
	BodyWeightKg float64          `json:"body_weight_kg"`
	MET          float64          `json:"met"`
	DefaultMET   bool             `json:"default_met"`
	Calories     int              `json:"calories"`
}

func newEstimateCmd(asJSON *bool) *cobra.Command {
	var kind, intensity string
	var minutes, weight float64

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate calories for an activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if minutes <= 0 {
				return errors.New("--minutes must be > 0")
			}
			k := energy.Kind(strings.ToLower(strings.TrimSpace(kind)))
			i := energy.Intensity(strings.ToLower(strings.TrimSpace(intensity)))
			met, fromTable := energy.MET(k, i)
			out := estimateOutput{
				Kind:         k,
				Intensity:    i,
				Minutes:      minutes,
				BodyWeightKg: weight,
				MET:          met,
				DefaultMET:   !fromTable,
				Calories:     energy.EstimateCaloriesForWeight(k, i, minutes, weight),
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			note := ""
			if out.DefaultMET {
				note = " (default MET)"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %.0f min @ %.1f kg: %d kcal, MET %.1f%s\n",
				out.Kind, out.Intensity, out.Minutes, out.BodyWeightKg, out.Calories, out.MET, note)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(energy.KindWalking), "activity kind")
	cmd.Flags().StringVar(&intensity, "intensity", string(energy.DefaultIntensity), "light|moderate|vigorous")
	cmd.Flags().Float64Var(&minutes, "minutes", 0, "duration in minutes")
	cmd.Flags().Float64Var(&weight, "weight", energy.DefaultBodyWeightKg, "body weight in kg")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newClassifyCmd(asJSON *bool) *cobra.Command {
	var calories, minutes float64

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Infer intensity from calories burned over a duration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if minutes <= 0 {
				return errors.New("--minutes must be > 0")
			}
			intensity := energy.ClassifyIntensity(calories, minutes)
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"calories":     calories,
					"duration_min": minutes,
					"intensity":    intensity,
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), intensity)
			return nil
		},
	}
	cmd.Flags().Float64Var(&calories, "calories", 0, "total calories over the window")
	cmd.Flags().Float64Var(&minutes, "minutes", 0, "window length in minutes")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newMapTypeCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "map-type <identifier>",
		Short: "Map a com.google.* activity identifier to a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, recognized := energy.LookupExternalActivityType(args[0])
			kind := energy.MapExternalActivityType(args[0])
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"identifier": args[0],
					"kind":       kind,
					"recognized": recognized,
				})
			}
			if !recognized {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (fallback)\n", kind)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), kind)
			return nil
		},
	}
}

type kindRow struct {
	Kind       energy.Kind                  `json:"kind"`
	Identifier string                       `json:"identifier"`
	MET        map[energy.Intensity]float64 `json:"met"`
}

func newKindsCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List activity kinds with their MET values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([]kindRow, 0, len(energy.Kinds()))
			for _, k := range energy.Kinds() {
				identifier, _ := energy.ExternalType(k)
				row := kindRow{Kind: k, Identifier: identifier, MET: make(map[energy.Intensity]float64)}
				for _, i := range energy.Intensities() {
					row.MET[i], _ = energy.MET(k, i)
				}
				rows = append(rows, row)
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KIND\tLIGHT\tMODERATE\tVIGOROUS\tIDENTIFIER")
			for _, r := range rows {
				_, _ = fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%s\n", r.Kind,
					r.MET[energy.IntensityLight], r.MET[energy.IntensityModerate], r.MET[energy.IntensityVigorous], r.Identifier)
			}
			return tw.Flush()
		},
	}
}

func newTokenCmd() *cobra.Command {
	var subject, tenant string
	var scopes []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token with JWT_SECRET and JWT_ISSUER",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, tenant, scopes, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id (sub claim)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
