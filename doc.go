// Package fakerate measures the rate at which jets fake hadronic tau
// decays in Z→ll events, and derives data/simulation scale factors and
// quark and gluon fake rates from it.
//
// The analysis lives in the subpackages; this package holds the helpers
// shared by the plots and the command line tools.
package fakerate
