// Package harness provides a scripted stand-in for the backend CLI.
//
// A script maps command patterns to canned responses. Rehearsals
// (`drill election --script ...`) and tests run the real phase logic against
// it, and the recorded call trace can be compared against golden files.
//
// # Script Format
//
//	name: signup_rehearsal
//	description: "Every actor signs up once; the second signup is a duplicate"
//	rules:
//	  - name: signup
//	    match: 'push action \S+ signup '
//	    responses:
//	      - output: "executed transaction: 1a2b"
//	      - output: "Error 3050003: assertion failure with message: already signed up"
//	        exit: 1
//	default:
//	  output: ""
//
// Rules are tried in order; the first whose match regexp finds the command
// answers it. Each rule consumes its responses in order and repeats the
// last one once they run out. A command no rule matches gets the default
// response, or exit status 127 when the script has no default.
//
// Scripts ending in .cue are compiled with CUE and checked against a closed
// #Script schema, which allows generating per-actor rules:
//
//	name: "balances"
//	rules: [for a in ["drillaaaaaa", "drillaaaaab"] {
//		match: "get currency balance \S+ \(a) "
//		responses: [{output: "10.0000 PLAY"}]
//	}]
//
// # Deterministic Testing
//
// The backend keeps a per-call sequence number, so two runs of the same
// command stream against the same script record identical traces.
package harness
