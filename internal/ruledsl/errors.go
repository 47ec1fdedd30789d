// Package ruledsl compiles the human-readable rule text format into
// models.Rule values the rule engine can evaluate.
//
// A rule looks like:
//
//	RULE "High Temperature"
//	WHEN sensor.temperature > 50
//	FOR 5 minutes
//	DO
//	    NOTIFY "Device temperature too high: {temperature}C"
//	    EXECUTE device.fan(speed=100)
//	    LOG alert, severity="high"
//	END
//
// Parse accepts the single-line form an LLM often emits too
// (RULE "x" WHEN ... DO ... END on one line) by splitting it into the
// multi-line form above before parsing.
package ruledsl

import "errors"

// ErrParse is wrapped by any syntax error the parser encounters.
var ErrParse = errors.New("ruledsl: parse error")
