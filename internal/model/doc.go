// Package model defines the data exchanged between the point exchange engine,
// its persistence layer and its inspection surfaces.
//
// Types in this package carry no behavior beyond value arithmetic: eras,
// applications, settlement records, fixed-point fractions and token amounts.
// Ranking, admission and settlement rules live in internal/exchange.
package model
