package experiment

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/evsim/core/logger"
)

// Columns lists the numeric summary columns in display order.
var Columns = []string{
	MetricProportionDelivered,
	MetricDemandsFullyMet,
	MetricPeakCurrent,
	MetricTotalEnergyDelivered,
	MetricTotalEnergyRequested,
	"revenue",
	MetricDemandCharge,
	MetricEnergyCost,
	"total_cost",
	"profit",
}

// Row is one (window, scenario, algorithm) line of a summary. Metric fields
// are NaN when the run has no metrics.
type Row struct {
	Window    string `json:"window"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Scenario  string `json:"scenario"`
	Algorithm string `json:"algorithm"`

	ProportionDelivered  float64 `json:"proportion_delivered"`
	DemandsFullyMet      float64 `json:"demands_fully_met"`
	PeakCurrent          float64 `json:"peak_current"`
	TotalEnergyDelivered float64 `json:"total_energy_delivered"`
	TotalEnergyRequested float64 `json:"total_energy_requested"`
	Revenue              float64 `json:"revenue"`
	DemandCharge         float64 `json:"demand_charge"`
	EnergyCost           float64 `json:"energy_cost"`
	TotalCost            float64 `json:"total_cost"`
	Profit               float64 `json:"profit"`

	Missing bool `json:"missing,omitempty"`
}

// Values returns the numeric fields in Columns order.
func (r Row) Values() []float64 {
	return []float64{
		r.ProportionDelivered,
		r.DemandsFullyMet,
		r.PeakCurrent,
		r.TotalEnergyDelivered,
		r.TotalEnergyRequested,
		r.Revenue,
		r.DemandCharge,
		r.EnergyCost,
		r.TotalCost,
		r.Profit,
	}
}

// SetValues assigns the numeric fields from v in Columns order.
func (r *Row) SetValues(v []float64) {
	r.ProportionDelivered, r.DemandsFullyMet, r.PeakCurrent = v[0], v[1], v[2]
	r.TotalEnergyDelivered, r.TotalEnergyRequested = v[3], v[4]
	r.Revenue, r.DemandCharge, r.EnergyCost, r.TotalCost, r.Profit = v[5], v[6], v[7], v[8], v[9]
}

// Summary is the aggregated table of a plan.
type Summary struct {
	Rows    []Row
	Missing []*MissingArtifact
}

// Aggregator reads run metrics back into a summary.
type Aggregator struct {
	Runs *RunCache
	Log  logger.Logger
}

// Summarize builds one row per planned run, in plan order. Missing metrics
// never abort the summary: the row is filled with NaN and the artifact is
// listed in Summary.Missing.
func (a *Aggregator) Summarize(p *Plan) Summary {
	log := a.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	var s Summary
	for _, k := range p.Runs() {
		row := Row{
			Window:    k.Window.Name,
			Start:     k.Window.StartDate(),
			End:       k.Window.EndDate(),
			Scenario:  k.Scenario,
			Algorithm: p.Label(k.Algorithm),
		}
		m, err := a.Runs.LoadMetrics(k)
		if err != nil {
			var ma *MissingArtifact
			if !errors.As(err, &ma) {
				ma = &MissingArtifact{Key: k, Path: a.Runs.Dir(k), Err: err}
			}
			log.Warnw("missing run metrics", map[string]any{"run": k.String(), "error": ma.Err.Error()})
			s.Missing = append(s.Missing, ma)
			row.Missing = true
			nan := make([]float64, len(Columns))
			for i := range nan {
				nan[i] = math.NaN()
			}
			row.SetValues(nan)
			s.Rows = append(s.Rows, row)
			continue
		}
		fillRow(&row, m, p.Revenue)
		s.Rows = append(s.Rows, row)
	}
	return s
}

// fillRow copies stored metrics and derives revenue, total cost and profit.
// A metric absent from the mapping is NaN.
func fillRow(r *Row, m map[string]float64, rate float64) {
	get := func(k string) float64 {
		if v, ok := m[k]; ok {
			return v
		}
		return math.NaN()
	}
	r.ProportionDelivered = get(MetricProportionDelivered)
	r.DemandsFullyMet = get(MetricDemandsFullyMet)
	r.PeakCurrent = get(MetricPeakCurrent)
	r.TotalEnergyDelivered = get(MetricTotalEnergyDelivered)
	r.TotalEnergyRequested = get(MetricTotalEnergyRequested)
	r.DemandCharge = get(MetricDemandCharge)
	r.EnergyCost = get(MetricEnergyCost)
	r.Revenue = r.ProportionDelivered / 100 * r.TotalEnergyRequested * rate
	r.TotalCost = r.DemandCharge + r.EnergyCost
	r.Profit = r.Revenue - r.TotalCost
}

// MeanByAlgorithm averages every column per algorithm over the rows that
// have metrics, keeping first-seen algorithm order. An algorithm without any
// metrics gets a NaN row.
func (s Summary) MeanByAlgorithm() []Row {
	var order []string
	cols := map[string][][]float64{}
	for _, r := range s.Rows {
		if _, ok := cols[r.Algorithm]; !ok {
			order = append(order, r.Algorithm)
			cols[r.Algorithm] = make([][]float64, len(Columns))
		}
		if r.Missing {
			continue
		}
		for i, v := range r.Values() {
			if !math.IsNaN(v) {
				cols[r.Algorithm][i] = append(cols[r.Algorithm][i], v)
			}
		}
	}
	out := make([]Row, 0, len(order))
	for _, alg := range order {
		means := make([]float64, len(Columns))
		for i, xs := range cols[alg] {
			if len(xs) == 0 {
				means[i] = math.NaN()
				continue
			}
			means[i] = stat.Mean(xs, nil)
		}
		row := Row{Window: "mean", Algorithm: alg}
		row.SetValues(means)
		out = append(out, row)
	}
	return out
}
