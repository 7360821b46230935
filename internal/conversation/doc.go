// ABOUTME: Package documentation for the conversation service layer
// ABOUTME: Describes the operations and the invariants they uphold

// Package conversation implements the messaging core for the marketplace:
// idempotent conversation upsert keyed on the participant pair, guarded
// message append and history reads, and bulk lifecycle closing when a
// listing's deal closes.
//
// Every operation canonicalizes caller-supplied ids, routes through the
// access guard, and renders messages relative to the viewer. Conversations
// between two non-admin users stay strictly 1:1; admins may observe and
// reply without counting against that pair.
package conversation
