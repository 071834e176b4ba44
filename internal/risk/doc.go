// Package risk defines the inputs of a damage calculation and the narrow
// interface through which fragility models are evaluated.
//
// Key types:
//   - Asset, Site: exposure and hazard locations
//   - RiskInput: the assets and site hazards for one IMT
//   - Workflow: turns ground-motion values into damage fractions
//   - Model: the (IMT, taxonomy) -> Workflow mapping plus damage states
//   - RlzsAssoc: GSIM names to realization ordinals
package risk
