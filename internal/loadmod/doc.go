// Package loadmod implements the EVSE load modification formula.
//
// The formula biases the load signal seen by the EV charger using a
// composite priority score over the house and EV battery states of
// charge: a comfortable house battery plus an empty EV battery drives the
// reported load down, freeing charge current for the EV.
//
// Compute is a pure function; the bridge invokes it synchronously on
// every inbound load message and publishes the result. When either SoC is
// still unknown the bridge skips the invocation entirely and passes the
// raw load through unmodified rather than computing against a default of
// zero.
package loadmod
