package household

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ramuks22/project-paystub-analyzer/internal/corrections"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
	"github.com/ramuks22/project-paystub-analyzer/internal/normalize"
	"github.com/ramuks22/project-paystub-analyzer/internal/w2agg"
)

// LoadConfig reads and validates a household configuration document.
func LoadConfig(path string) (*model.HouseholdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "household: read config %s", path)
	}
	var cfg model.HouseholdConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "household: parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoaderOptions tunes input loading.
type LoaderOptions struct {
	// MaxPlausible caps extracted amounts during normalization.
	MaxPlausible money.Cents
}

// Loader returns a load function that resolves a filer's relative paths
// against baseDir, typically the config file's directory.
func Loader(baseDir string, opts LoaderOptions) func(model.Filer) (FilerInput, error) {
	return func(filer model.Filer) (FilerInput, error) {
		in := FilerInput{Filer: filer}

		if filer.PaystubDir != "" {
			snaps, err := loadSnapshots(resolve(baseDir, filer.PaystubDir), opts)
			if err != nil {
				return in, err
			}
			in.Snapshots = snaps
		}

		for _, w2Path := range filer.W2Files {
			path := resolve(baseDir, w2Path)
			data, err := os.ReadFile(path)
			if err != nil {
				return in, eris.Wrapf(err, "household: read w2 %s", path)
			}
			rec, err := w2agg.ParseRecord(data, filepath.Base(path))
			if err != nil {
				return in, err
			}
			in.W2s = append(in.W2s, rec)
		}

		if filer.CorrectionsFile != "" {
			path := resolve(baseDir, filer.CorrectionsFile)
			data, err := os.ReadFile(path)
			if err != nil {
				return in, eris.Wrapf(err, "household: read corrections %s", path)
			}
			set, err := corrections.Load(data)
			if err != nil {
				return in, err
			}
			in.Corrections = set
		}
		return in, nil
	}
}

func loadSnapshots(dir string, opts LoaderOptions) ([]*model.PeriodSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "household: read paystub dir %s", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	snaps := make([]*model.PeriodSnapshot, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "household: read snapshot %s", path)
		}
		snap, err := normalize.ParseSnapshot(data, normalize.Options{MaxPlausible: opts.MaxPlausible})
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	zap.L().Debug("household: snapshots loaded",
		zap.String("dir", dir),
		zap.Int("count", len(snaps)),
	)
	return snaps, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
