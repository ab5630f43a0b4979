package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"showroom/internal/catalog"
)

// GenCatalogOptions holds flags for the gen-catalog command.
type GenCatalogOptions struct {
	*RootOptions
	Count  int
	Output string
	Seed   int64
}

// NewGenCatalogCommand creates the gen-catalog command.
func NewGenCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenCatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen-catalog",
		Short: "Generate a sample catalog file",
		Long: `Generate a sample catalog with the same irregularities the upstream catalog
has: text prices, missing ids, blank or repeated colors. The file format
follows the output extension (.json, .yaml/.yml or .csv).

Examples:
  showroom gen-catalog --count 20 --output catalog.json
  showroom gen-catalog --output catalog.csv --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenCatalog(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 12, "number of records to generate")
	cmd.Flags().StringVar(&opts.Output, "output", "catalog.json", "output file")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 uses the clock)")
	return cmd
}

func runGenCatalog(opts *GenCatalogOptions, out io.Writer) error {
	if opts.Count < 0 {
		return WrapExitError(ExitCommandError, "invalid count", fmt.Errorf("count must not be negative, got %d", opts.Count))
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	recs := generateCatalog(newRand(seed), opts.Count)

	if dir := filepath.Dir(opts.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "create output dir", err)
		}
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return WrapExitError(ExitCommandError, "create output", err)
	}
	defer f.Close()

	if err := encodeCatalog(f, filepath.Ext(opts.Output), recs); err != nil {
		return WrapExitError(ExitCommandError, "write catalog", err)
	}
	fmt.Fprintf(out, "generated %d records to %s\n", len(recs), opts.Output)
	return nil
}

func newRand(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

var sampleModels = []struct {
	variant string
	names   []string
	base    int64
}{
	{"Activa", []string{"Activa 6G", "Activa 125", "Activa Premium"}, 78000},
	{"Shine", []string{"Shine 100", "Shine SP"}, 72000},
	{"Unicorn", []string{"Unicorn"}, 118000},
	{"Dio", []string{"Dio", "Dio 125"}, 74000},
}

var sampleColors = []string{"Red", "Blue", "Black", "Pearl White", "Matte Grey", "Yellow"}

// generateCatalog builds count records cycling through the sample models.
// Roughly one record in five has no id and one in six has no colors.
func generateCatalog(rng *rand.Rand, count int) []catalog.Record {
	recs := make([]catalog.Record, 0, count)
	for i := 0; i < count; i++ {
		m := sampleModels[i%len(sampleModels)]
		name := m.names[(i/len(sampleModels))%len(m.names)]

		exShowroom := m.base + int64(rng.Intn(40))*250
		tax := exShowroom * 7 / 100
		insurance := int64(3500 + rng.Intn(3000))
		warranty := int64(1000 + rng.Intn(4)*500)
		onRoad := decimal.NewFromInt(exShowroom + tax + insurance + warranty)

		rec := catalog.Record{
			VehicleName:      name,
			Variant:          m.variant,
			ExShowroomPrice:  catalog.NewAmount(decimal.NewFromInt(exShowroom)),
			Tax:              catalog.NewAmount(decimal.NewFromInt(tax)),
			Insurance:        catalog.NewAmount(decimal.NewFromInt(insurance)),
			ExtendedWarranty: catalog.NewAmount(decimal.NewFromInt(warranty)),
			OnRoadPrice:      catalog.NewAmount(onRoad),
		}
		if rng.Intn(5) != 0 {
			rec.ID = fmt.Sprintf("BK-%03d", i+1)
		}
		switch rng.Intn(8) {
		case 0:
			rec.OnRoadPrice = catalog.ParseAmount("₹" + groupThousands(onRoad.IntPart()))
		case 1:
			rec.OnRoadPrice = catalog.ParseAmount("on request")
		}
		if rng.Intn(6) != 0 {
			n := 1 + rng.Intn(4)
			for _, j := range rng.Perm(len(sampleColors))[:n] {
				rec.Colors = append(rec.Colors, sampleColors[j])
			}
			if rng.Intn(4) == 0 {
				rec.Colors = append(rec.Colors, " ", rec.Colors[0])
			}
		}
		recs = append(recs, rec)
	}
	return recs
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// encodeCatalog writes recs in the format named by ext.
func encodeCatalog(w io.Writer, ext string, recs []catalog.Record) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()
	case ".csv":
		return writeSheet(w, recs)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
}

// writeSheet writes recs in the spreadsheet layout read by catalog.FromSheetRows.
func writeSheet(w io.Writer, recs []catalog.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"Bike_id", "Vehicle_name", "Variant", "Ex_showroom_price", "Tax", "Insurance", "Extended_warranty", "On_road_price"}
	for i := 1; i <= 7; i++ {
		header = append(header, fmt.Sprintf("Color_%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.ID, r.VehicleName, r.Variant,
			r.ExShowroomPrice.String(), r.Tax.String(), r.Insurance.String(),
			r.ExtendedWarranty.String(), r.OnRoadPrice.String(),
		}
		colors := r.Colors
		if len(colors) > 7 {
			colors = colors[:7]
		}
		row = append(row, colors...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
