// Package models defines the core domain models for Splitton.
//
// # Current Models
//
//   - Bill: a shared bill split among participants, settled in TON or USDT
//   - Participant: one person's share of a bill, with its payment state
//   - PaymentIntent: a recorded request to pay one participant's share,
//     prior to on-chain confirmation
//   - User: a registered user mirrored from Telegram identity
//
// # Design Principles
//
//  1. **Money is decimal**: all monetary amounts use decimal.Decimal.
//     Binary floats must never be used for sums or comparisons.
//  2. **Avoid circular references**: relationships use ID strings, never
//     struct pointers (the one exception is Bill embedding its own
//     Participants, which it owns).
//  3. **Snapshots over references**: a PaymentIntent captures the share
//     amount at creation time; later share edits do not change an issued
//     intent.
//
// # Identity Resolution
//
// Participants may be added before the person ever opens the app. The
// unresolved identity (Telegram user ID, username, or freeform name) is
// kept on the participant and linked to a User row when that person later
// authenticates.
package models
