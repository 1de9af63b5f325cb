// Package media provides the normalized item model shared by the stories
// viewer and the reels feed.
//
// This package contains type definitions and pure helpers only. Every other
// internal package imports media; media imports nothing internal.
//
// Key constraints:
//   - Exactly one of {SourceURL present, Kind == KindText} holds for an Item
//   - Items are immutable from the client's perspective except for the
//     locally merged Viewed flag and widget responses
//   - Groups hold items by pointer; the viewer receives the same pointers
//     the bar built, never copies
package media
