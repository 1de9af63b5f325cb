// Package harness runs YAML scenarios against the stories viewer and the
// reel feed and checks the resulting transition trace.
//
// # Scenario Format
//
//	name: scenario_a_auto_advance
//	description: "Three text stories advance on their timers"
//	mode: stories            # or reels
//	fixture: ../fixtures/stories.yaml
//	settings:
//	  tick: 100ms
//	  pause_on_widget: true
//	  network: auto          # or manual
//	steps:
//	  - open: {author: alice}
//	  - advance: 16s
//	  - tap: left
//	  - swipe: down
//	  - hold: 600ms
//	  - media: {event: ended}
//	  - overlay: {action: submit, value: tea}
//	  - scroll: 6400
//	  - settle: true
//	  - resolve: all
//	  - fail: {op: fetchReelFeed, times: 1}
//	  - mute: false
//	  - close: true
//	assertions:
//	  - {type: state, state: closed}
//	  - {type: position, group: 0, index: 2}
//	  - {type: trace_count, kind: completed, count: 3}
//	  - {type: trace_order, kinds: ["activated a1", "completed a1"]}
//	  - {type: fetch_count, count: 1}
//	  - {type: view_count, count: 3}
//	  - {type: response, widget: w1, status: acked}
//
// # Determinism
//
// Every run gets a fake clock at testutil.Epoch, a fixed session id, an
// in-memory store and a fixture backend behind a manual dispatcher. In
// auto network mode queued calls are resolved after every step; in manual
// mode only resolve steps run them, so a scenario can hold a fetch in
// flight.
//
// Golden traces live in testdata/golden and are compared with goldie:
//
//	go test ./internal/harness -update
package harness
