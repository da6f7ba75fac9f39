package modeling

import (
	"fmt"
	"strconv"

	"qcmpulse/pkg/contracts/domain"
)

// Output is the content of a model output file for one run
type Output struct {
	File    string
	Header  []string
	Records [][]string
	// Keyed outputs hold one block of rows per (range_name, data_source); the others are
	// rewritten as a whole
	Keyed bool
}

// OutputFiles maps every model to its output file
var OutputFiles = map[domain.ModelName]string{
	domain.ModelSauerbrey:        "sauerbrey_output.csv",
	domain.ModelThinFilmLiquid:   "thin_film_liquid_output.csv",
	domain.ModelThinFilmAir:      "thin_film_air_output.csv",
	domain.ModelCrystalThickness: "crystal_thickness_output.csv",
	domain.ModelGordonKanazawa:   "gordon-kanazawa_output.csv",
	domain.ModelVoinova:          "voinova_output.csv",
	domain.ModelAverageShifts:    "averages_output.csv",
}

var outputHeaders = map[domain.ModelName][]string{
	domain.ModelSauerbrey:        {"overtone", "avg_Df", "avg_Df_err", "avg_Df_FIT", "avg_Dm", "avg_Dm_err", "C", "range_name", "data_source"},
	domain.ModelThinFilmLiquid:   {"n*Df", "bandwidth_shift", "bandwidth_shift_FIT", "range_name", "data_source"},
	domain.ModelThinFilmAir:      {"sq_overtones", "delta_gamma_norm", "delta_gamma_norm_fit", "delta_freqs_norm", "delta_freq_norm_fit", "range_name", "data_source"},
	domain.ModelCrystalThickness: {"overtone", "offset_vals", "offset_vals_FIT", "crystal_thickness(mm)"},
	domain.ModelGordonKanazawa:   {"overtone", "average_Df", "average_Df_n", "kinematic_viscosity", "range_name", "data_source"},
	domain.ModelVoinova:          {"overtone", "avg_Df", "avg_Df_err", "avg_Df_FIT", "delta3", "mu1", "h1", "range_name", "data_source"},
	domain.ModelAverageShifts:    {"overtone", "avg_Df", "avg_Df_err", "avg_DD", "avg_DD_err", "range_name", "data_source"},
}

type outputBuilder struct {
	out    Output
	suffix []string
}

func newOutput(model domain.ModelName, ds *Dataset) *outputBuilder {
	b := &outputBuilder{out: Output{File: OutputFiles[model], Header: outputHeaders[model]}}
	if ds != nil {
		b.out.Keyed = true
		b.suffix = []string{ds.Label, ds.Source()}
	}
	return b
}

// row appends a record made of a leading integer column, formatted values and the key columns
func (b *outputBuilder) row(lead int, values ...float64) {
	rec := make([]string, 0, 1+len(values)+len(b.suffix))
	rec = append(rec, strconv.Itoa(lead))
	for _, v := range values {
		rec = append(rec, formatValue(v))
	}
	b.out.Records = append(b.out.Records, append(rec, b.suffix...))
}

// valuesRow appends a record of formatted values and the key columns
func (b *outputBuilder) valuesRow(values ...float64) {
	rec := make([]string, 0, len(values)+len(b.suffix))
	for _, v := range values {
		rec = append(rec, formatValue(v))
	}
	b.out.Records = append(b.out.Records, append(rec, b.suffix...))
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.8E", v)
}
