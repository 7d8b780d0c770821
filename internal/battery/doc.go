// Package battery holds the latest battery state-of-charge values.
//
// The load modifier needs the most recent house and EV battery SoC on
// every inbound load message. This package provides that as an explicitly
// owned State object passed to the components that need it; there are no
// ambient globals. Values are last-write-wins with no history, and start
// unset so consumers can distinguish "no message yet" from a real zero.
package battery
