// Package d21engine implements the D21 plus/minus election engine inside the
// elections context.
//
// The module owns the election lifecycle (initialize, add candidate, cast
// vote, finalize), the vote budget and ballot validation rules, and the
// election events produced through an outbox-backed relay. Business rules
// live in the domain/application layers; storage, messaging and transport
// stay behind ports and adapters.
package d21engine
