// Package phone contains the call widget state machine.
//
// Allowed here:
// - dial state, phases and their display labels
// - the transition function and the effects it asks the client to perform
// - the closed client contract and notification kinds
//
// Not allowed here:
// - rendering, key handling, or anything that talks SIP
package phone
