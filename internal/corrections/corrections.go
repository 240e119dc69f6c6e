// Package corrections loads user-supplied field overrides and applies them
// on top of computed values with a full accountability trace.
package corrections

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// TraceSource marks trace entries produced by a correction document.
const TraceSource = "correction_file"

// boxAliases maps W-2 box shorthand keys to summary fields.
var boxAliases = map[string]model.FieldKey{
	"box1": model.FieldGrossPay,
	"box2": model.FieldFederalIncomeTax,
	"box3": model.FieldSocialSecurityWages,
	"box4": model.FieldSocialSecurityTax,
	"box5": model.FieldMedicareWages,
	"box6": model.FieldMedicareTax,
}

// Entry is one override: the target amount and its audit justification.
type Entry struct {
	Field  model.FieldKey
	Amount money.Cents
	Reason string
}

// Set is an ordered, validated correction document for one filer/year.
type Set struct {
	Entries []Entry
}

type rawEntry struct {
	Value  *float64 `yaml:"value"`
	Reason string   `yaml:"reason"`
}

// Load parses and validates a correction document. Validation is fail-fast:
// a single bad key rejects the whole document before anything applies.
func Load(data []byte) (*Set, error) {
	var doc struct {
		Corrections yaml.Node `yaml:"corrections"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "corrections: parse document")
	}

	set := &Set{}
	if doc.Corrections.Kind == 0 {
		return set, nil
	}
	if doc.Corrections.Kind != yaml.MappingNode {
		return nil, model.NewSchemaError("corrections must be a mapping of field keys to overrides")
	}

	// Walk the mapping node directly so document order is preserved for
	// trace ordinals.
	content := doc.Corrections.Content
	for i := 0; i+1 < len(content); i += 2 {
		name := content[i].Value
		key, err := ResolveKey(name)
		if err != nil {
			return nil, err
		}

		var raw rawEntry
		if err := content[i+1].Decode(&raw); err != nil {
			return nil, model.NewSchemaError("correction %q has an invalid value: %v", name, err)
		}
		if raw.Value == nil {
			return nil, model.NewSchemaError("correction %q has no value", name)
		}
		reason := raw.Reason
		if reason == "" {
			reason = "manual correction"
		}
		set.Entries = append(set.Entries, Entry{
			Field:  key,
			Amount: money.FromDollars(*raw.Value),
			Reason: reason,
		})
	}
	return set, nil
}

// ResolveKey maps a correction document key to a summary field. Literal core
// fields and box aliases resolve directly; state-scoped keys must carry an
// explicit two-letter state code.
func ResolveKey(name string) (model.FieldKey, error) {
	name = strings.TrimSpace(name)

	if key, ok := boxAliases[name]; ok {
		return key, nil
	}
	if model.IsCoreField(model.FieldKey(name)) {
		return model.FieldKey(name), nil
	}
	if name == "state_income_tax" {
		// Ambiguous overrides were historically skipped with a warning;
		// the schema now rejects them outright.
		return "", model.NewSchemaError(
			"bare %q cannot be overridden; qualify the state, e.g. state_income_tax_VA", name)
	}
	if strings.HasPrefix(name, "state_income_tax_") {
		key := model.FieldKey(name)
		if _, ok := key.StateCode(); !ok {
			return "", model.NewSchemaError(
				"correction key %q does not resolve to a two-letter state code", name)
		}
		return key, nil
	}
	return "", model.NewValidationError("unknown correction field %q", name)
}

// Apply overrides summary fields in document order, appending one trace entry
// per application. Corrections run after auto-healing, so an override always
// wins over a healed value. The returned trace is never nil.
func Apply(summary map[model.FieldKey]*model.FieldValue, set *Set) []model.CorrectionTrace {
	trace := []model.CorrectionTrace{}
	if set == nil {
		return trace
	}
	for i, entry := range set.Entries {
		prev := summary[entry.Field]
		var prevAmount *money.Cents
		if prev != nil {
			p := prev.Amount
			prevAmount = &p
		}
		summary[entry.Field] = prev.Overridden(entry.Amount, entry.Reason)
		trace = append(trace, model.CorrectionTrace{
			Field:    entry.Field,
			Previous: prevAmount,
			New:      entry.Amount,
			Source:   TraceSource,
			Reason:   entry.Reason,
			Ordinal:  i,
		})
		zap.L().Info("corrections: override applied",
			zap.String("field", string(entry.Field)),
			zap.String("new", entry.Amount.String()),
			zap.String("reason", entry.Reason),
		)
	}
	return trace
}
