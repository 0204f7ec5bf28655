// Package preflight provides readiness checks for the directories and
// detector endpoints trailcam depends on.
//
// The run command calls RunAll before enumerating media and refuses to start
// when a check fails. "trailcam doctor" prints every result.
package preflight
