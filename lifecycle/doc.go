// Package lifecycle holds the pure rules of the equipment loan domain: the
// borrow state machine with its role guards, the half-open interval overlap
// test, the free-unit sweep and the derivation of an equipment's coarse
// status from its loans. Nothing in here touches storage or the clock; the
// caller passes "now" in.
package lifecycle
