// Package equipment serves the equipment catalog: display metadata keyed by
// equipment id, loaded from a YAML file and reloaded when the file changes.
//
// File format:
//
//	equipment:
//	  - id: PUMP-1
//	    name: Main Cooling Pump
//	    type: pump
//	    location: Hall A
package equipment
