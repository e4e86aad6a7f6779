package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards returning the same value can merge into one condition.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Nested loops over catalog rows usually hide scans that belong in SQL.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

func errorWrapping(m dsl.Matcher) {
	// Handlers match service errors with errors.Is, so wrapping must use %w.
	m.Match(`fmt.Errorf($fmt, $err)`).
		Where(m["fmt"].Text.Matches(`"[^"]*%v"`) && m["err"].Type.Implements(`error`)).
		Report(`wrap errors with %w instead of %v so callers can unwrap them`)
}
