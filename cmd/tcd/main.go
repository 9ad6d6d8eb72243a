// Command tcd inspects Tidal Constituent Database (TCD) files.
//
// Usage:
//
//	tcd info harmonics.tcd
//	tcd constituents harmonics.tcd --name M2
//	tcd stations harmonics.tcd --type reference
//	tcd show harmonics.tcd "San Francisco, San Francisco Bay, California" --infer
//	tcd search harmonics.tcd "san francisco"
//	tcd nearest harmonics.tcd 37.8 -122.4 --radius 50
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geal-ai/tcd"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "tcd",
		Short:         "Inspect Tidal Constituent Database (TCD) files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(infoCmd(), constituentsCmd(), stationsCmd(), showCmd(), searchCmd(), nearestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openDB opens path with a logger wired to the --verbose flag.
func openDB(path string) (*tcd.Database, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return tcd.Open(path, tcd.WithLogger(log))
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print database summary metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			h := db.Header()
			fmt.Printf("Version       : %s\n", h.Version)
			fmt.Printf("Revision      : %d.%d\n", h.MajorRev, h.MinorRev)
			fmt.Printf("Last modified : %s\n", h.LastModified)
			fmt.Printf("Stations      : %d\n", h.NumberOfRecords)
			fmt.Printf("Constituents  : %d\n", h.Constituents)
			fmt.Printf("Years         : %d..%d\n", h.StartYear, h.StartYear+h.NumberOfYears-1)
			fmt.Printf("End of file   : %d bytes\n", h.EndOfFile)
			fmt.Printf("Checksum      : 0x%08X (not verified)\n", h.Checksum)
			return nil
		},
	}
}

func constituentsCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "constituents FILE",
		Short: "List constituents, or detail one by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			if name != "" {
				c := db.Constituent(name)
				if c == nil {
					return errors.Wrapf(tcd.ErrNotFound, "no constituent named %q", name)
				}
				h := db.Header()
				fmt.Printf("%s: %.7f°/hour\n", c.Name, c.Speed)
				for y := range c.Equilibrium {
					fmt.Printf("  %d  equilibrium %9.4f°  node factor %.4f\n",
						h.StartYear+y, c.Equilibrium[y], c.NodeFactors[y])
				}
				return nil
			}
			for _, c := range db.Constituents() {
				fmt.Printf("%3d  %-10s  %12.7f°/hour\n", c.Index, c.Name, c.Speed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "detail a single constituent")
	return cmd
}

func stationsCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "stations FILE",
		Short: "List stations, optionally filtered by type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			keep := func(st *tcd.Station) bool { return true }
			switch typ {
			case "":
			case "reference":
				keep = (*tcd.Station).IsReference
			case "subordinate":
				keep = (*tcd.Station).IsSubordinate
			case "tide":
				keep = (*tcd.Station).IsTide
			case "current":
				keep = (*tcd.Station).IsCurrent
			default:
				return fmt.Errorf("unknown --type %q (reference|subordinate|tide|current)", typ)
			}

			// Stream: listing must not force the whole-file cache.
			return db.EachStation(func(st *tcd.Station) error {
				if keep(st) {
					fmt.Printf("%6d  %-11s  %9.4f %10.4f  %s\n",
						st.Index, stationKind(st), st.Latitude, st.Longitude, st.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "filter: reference, subordinate, tide or current")
	return cmd
}

func showCmd() *cobra.Command {
	var infer bool
	cmd := &cobra.Command{
		Use:   "show FILE NAME",
		Short: "Show one station in full",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := db.StationByName(args[1])
			if err != nil {
				return err
			}
			if st == nil {
				return errors.Wrapf(tcd.ErrNotFound, "no station named %q", args[1])
			}
			if infer {
				if db.InferConstituents(st) {
					fmt.Println("(inferred missing constituents)")
				}
			}
			printStation(db, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&infer, "infer", false, "infer missing constituents before display")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search FILE SUBSTR",
		Short: "Find stations by case-insensitive name substring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			matches, err := db.FindStations(args[1])
			if err != nil {
				return err
			}
			for _, st := range matches {
				fmt.Printf("%6d  %9.4f %10.4f  %s\n", st.Index, st.Latitude, st.Longitude, st.Name)
			}
			fmt.Printf("%d station(s)\n", len(matches))
			return nil
		},
	}
}

func nearestCmd() *cobra.Command {
	var radius float64
	cmd := &cobra.Command{
		Use:   "nearest FILE LAT LON",
		Short: "Find the nearest station, or all stations within --radius km",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[1])
			}
			lon, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[2])
			}

			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			if radius > 0 {
				within, err := db.StationsWithin(lat, lon, radius)
				if err != nil {
					return err
				}
				for _, st := range within {
					fmt.Printf("%6d  %9.4f %10.4f  %s\n", st.Index, st.Latitude, st.Longitude, st.Name)
				}
				fmt.Printf("%d station(s) within %.1f km\n", len(within), radius)
				return nil
			}

			st, err := db.NearestStation(lat, lon)
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("database has no stations")
			}
			printStation(db, st)
			return nil
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "list all stations within this many km instead")
	return cmd
}

func stationKind(st *tcd.Station) string {
	switch {
	case st.IsReference():
		return "reference"
	case st.IsCurrent():
		return "current"
	default:
		return "subordinate"
	}
}

func printStation(db *tcd.Database, st *tcd.Station) {
	fmt.Printf("\n")
	fmt.Printf("  Name      : %s\n", st.Name)
	fmt.Printf("  Kind      : %s\n", stationKind(st))
	fmt.Printf("  Position  : %.4f°N  %.4f°E\n", st.Latitude, st.Longitude)
	fmt.Printf("  Timezone  : %s\n", st.Timezone)
	if st.Country != "" {
		fmt.Printf("  Country   : %s\n", st.Country)
	}
	if st.Source != "" {
		fmt.Printf("  Source    : %s\n", st.Source)
	}
	if st.LevelUnits != "" {
		fmt.Printf("  Levels in : %s\n", st.LevelUnits)
	}
	if st.ReferenceIndex != nil {
		fmt.Printf("  Reference : record %d\n", *st.ReferenceIndex)
	}

	if ref := st.Reference; ref != nil {
		fmt.Printf("  Datum     : %s (Z0 %+.4f)\n", ref.Datum, ref.DatumOffset)
		fmt.Printf("  Zone      : %+05d\n", ref.ZoneOffset)
		fmt.Printf("  Active    : %d constituent(s)\n", st.ActiveConstituents())
		for i, c := range db.Constituents() {
			if ref.Amplitudes[i] == 0 && ref.Epochs[i] == 0 {
				continue
			}
			fmt.Printf("    %-10s  amplitude %8.4f  epoch %9.4f°\n",
				c.Name, ref.Amplitudes[i], ref.Epochs[i])
		}
	}
	if sub := st.Subordinate; sub != nil {
		fmt.Printf("  Min       : %+d min, %+.3f add, ×%.3f\n",
			sub.MinTimeAdd, sub.MinLevelAdd, sub.MinLevelMultiply)
		fmt.Printf("  Max       : %+d min, %+.3f add, ×%.3f\n",
			sub.MaxTimeAdd, sub.MaxLevelAdd, sub.MaxLevelMultiply)
		if sub.FloodBegins != nil {
			fmt.Printf("  Flood     : %+d min\n", *sub.FloodBegins)
		}
		if sub.EbbBegins != nil {
			fmt.Printf("  Ebb       : %+d min\n", *sub.EbbBegins)
		}
	}
	fmt.Printf("\n")
}
