package model

// FilerRole distinguishes household members.
type FilerRole string

const (
	RolePrimary FilerRole = "PRIMARY"
	RoleSpouse  FilerRole = "SPOUSE"
)

// Filer is one household member with fully isolated source locations. One
// filer's paystubs and W-2s never feed another filer's ledger.
type Filer struct {
	ID              string    `yaml:"id" json:"id"`
	Role            FilerRole `yaml:"role" json:"role"`
	PaystubDir      string    `yaml:"paystub_dir" json:"paystub_dir,omitempty"`
	W2Files         []string  `yaml:"w2_files" json:"w2_files,omitempty"`
	CorrectionsFile string    `yaml:"corrections_file" json:"corrections_file,omitempty"`
}

// HouseholdConfig is the top-level multi-filer configuration. Household
// metadata is carried through verbatim and never influences numbers.
type HouseholdConfig struct {
	TaxYear      int     `yaml:"tax_year" json:"tax_year"`
	State        string  `yaml:"state" json:"state,omitempty"`
	FilingStatus string  `yaml:"filing_status" json:"filing_status,omitempty"`
	Filers       []Filer `yaml:"filers" json:"filers"`
}

// Validate rejects structural problems before any per-filer processing runs.
func (c *HouseholdConfig) Validate() error {
	if c.TaxYear == 0 {
		return NewValidationError("household: tax_year is required")
	}
	if len(c.Filers) == 0 {
		return NewValidationError("household: at least one filer is required")
	}
	seen := make(map[string]bool, len(c.Filers))
	for i, filer := range c.Filers {
		if filer.ID == "" {
			return NewValidationError("household: filer %d has an empty id", i)
		}
		if seen[filer.ID] {
			return NewValidationError("household: duplicate filer id %q", filer.ID)
		}
		seen[filer.ID] = true
		switch filer.Role {
		case RolePrimary, RoleSpouse:
		default:
			return NewValidationError("household: filer %q has unknown role %q", filer.ID, filer.Role)
		}
	}
	return nil
}

// FilerFailure reports one filer whose pipeline aborted with a typed error.
// Partial-household success is reported explicitly, never silently dropped.
type FilerFailure struct {
	FilerID string `json:"filer_id"`
	Error   string `json:"error"`
}

// HouseholdResult composes per-filer packages in configuration order.
type HouseholdResult struct {
	Config   HouseholdConfig  `json:"household"`
	Packages []*FilingPackage `json:"packages"`
	Failures []FilerFailure   `json:"failures"`
}

// Package returns the package for a filer id, or nil.
func (r *HouseholdResult) Package(filerID string) *FilingPackage {
	for _, pkg := range r.Packages {
		if pkg.FilerID == filerID {
			return pkg
		}
	}
	return nil
}
