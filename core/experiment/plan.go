package experiment

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evsim/core/model"
)

// ErrUnsupportedSite is fatal: no network description exists for the site.
var ErrUnsupportedSite = errors.New("unsupported site")

var siteZones = map[string]string{
	"caltech": "America/Los_Angeles",
	"jpl":     "America/Los_Angeles",
	"office1": "America/Los_Angeles",
}

// SiteLocation returns the local timezone of a supported site.
func SiteLocation(site string) (*time.Location, error) {
	zone, ok := siteZones[site]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedSite, site)
	}
	return time.LoadLocation(zone)
}

// WindowSpec is a named date range in the site's local time.
type WindowSpec struct {
	Name  string `yaml:"name" json:"name"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Plan describes one experiment sweep.
type Plan struct {
	Site string `yaml:"site" json:"site"`
	// Tariff names the time-of-use tariff passed to the simulator. Empty
	// means no tariff signal.
	Tariff string `yaml:"tariff" json:"tariff"`
	// Revenue is the rate per delivered kWh used by the summary.
	Revenue    float64      `yaml:"revenue" json:"revenue"`
	Windows    []WindowSpec `yaml:"windows" json:"windows"`
	Scenarios  []Scenario   `yaml:"scenarios" json:"scenarios"`
	Algorithms []string     `yaml:"algorithms" json:"algorithms"`
	// Labels rename algorithms in summaries.
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`

	windows []model.Window
}

// LoadPlan reads and validates a YAML plan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan and resolves its windows. An unsupported site
// wraps ErrUnsupportedSite.
func (p *Plan) Validate() error {
	p.Site = strings.ToLower(strings.TrimSpace(p.Site))
	loc, err := SiteLocation(p.Site)
	if err != nil {
		return err
	}
	var errs []error
	if p.Revenue < 0 || math.IsNaN(p.Revenue) || math.IsInf(p.Revenue, 0) {
		errs = append(errs, errors.New("revenue must be a finite number >= 0"))
	}
	if len(p.Windows) == 0 {
		errs = append(errs, errors.New("at least one window is required"))
	}
	if len(p.Scenarios) == 0 {
		errs = append(errs, errors.New("at least one scenario is required"))
	}
	if len(p.Algorithms) == 0 {
		errs = append(errs, errors.New("at least one algorithm is required"))
	}
	seen := map[string]bool{}
	for _, s := range p.Scenarios {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate scenario %q", s.Name))
		}
		seen[s.Name] = true
	}
	for _, a := range p.Algorithms {
		if strings.TrimSpace(a) == "" || strings.ContainsAny(a, `/\`) || a == "." || a == ".." {
			errs = append(errs, fmt.Errorf("invalid algorithm name %q", a))
		}
	}
	windows := make([]model.Window, 0, len(p.Windows))
	for _, ws := range p.Windows {
		w, err := ws.resolve(loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		windows = append(windows, w)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	p.windows = windows
	return nil
}

func (ws WindowSpec) resolve(loc *time.Location) (model.Window, error) {
	start, err := time.ParseInLocation(time.DateOnly, ws.Start, loc)
	if err != nil {
		return model.Window{}, fmt.Errorf("window %q start: %w", ws.Name, err)
	}
	end, err := time.ParseInLocation(time.DateOnly, ws.End, loc)
	if err != nil {
		return model.Window{}, fmt.Errorf("window %q end: %w", ws.Name, err)
	}
	w := model.NewWindow(ws.Name, start, end, loc)
	if err := w.Validate(); err != nil {
		return model.Window{}, fmt.Errorf("window %q: %w", ws.Name, err)
	}
	return w, nil
}

// ResolvedWindows returns the windows localized to the site. Validate must
// have succeeded.
func (p *Plan) ResolvedWindows() []model.Window { return p.windows }

// Label returns the display name of an algorithm.
func (p *Plan) Label(alg string) string {
	if l, ok := p.Labels[alg]; ok && l != "" {
		return l
	}
	return alg
}

// Runs enumerates every run key of the sweep in execution order: windows,
// then scenarios, then algorithms.
func (p *Plan) Runs() []RunKey {
	keys := make([]RunKey, 0, len(p.windows)*len(p.Scenarios)*len(p.Algorithms))
	for _, w := range p.windows {
		for _, s := range p.Scenarios {
			for _, a := range p.Algorithms {
				keys = append(keys, RunKey{Window: w, Tariff: p.Tariff, Revenue: p.Revenue, Scenario: s.Name, Algorithm: a})
			}
		}
	}
	return keys
}
