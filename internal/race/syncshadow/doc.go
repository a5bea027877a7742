// Package syncshadow stores the release clocks of synchronization objects.
//
// Every object a traced cell synchronizes through (its state word, its
// guard) gets a SyncVar keyed by address. A release merges the releasing
// caller's clock into the SyncVar; an acquire joins the SyncVar's clock into
// the acquiring caller. That pair is the happens-before edge.
//
// The types here are not safe for concurrent use. The detector serializes
// all access.
package syncshadow
