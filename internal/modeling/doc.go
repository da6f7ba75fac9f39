// Package modeling turns persisted range statistics into physical quantities.
//
// Statistics of one range label are first averaged across every data source that analyzed
// the label (Aggregate), with mean-error propagation per overtone. The resulting Dataset is
// handed to one of the models:
//
//   - Sauerbrey: areal mass from the slope of Δf against n, and per overtone
//   - thin film in liquid: bandwidth shift ΔΓ against nΔf
//   - thin film in air: ΔΓ/n and Δf/n² against n²
//   - crystal thickness: quartz thickness from the reference frequencies
//   - Gordon-Kanazawa: kinematic viscosity per overtone
//   - Voinova: viscoelastic film parameters, fitted with Nelder-Mead
//   - averages: mean Δf and ΔD per overtone
//
// Run returns the fit result together with the rows of the model's output file. Linear
// fits use gonum's stat package and nonlinear fits gonum's optimize package.
package modeling
