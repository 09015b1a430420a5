// Package conf contains the constants that are used across packages for configuring
// versions, register ceilings, stack sizes and collector thresholds.
package conf

import (
	"fmt"
	"time"
)

const (
	// LUNAVERSION is the version of the luna application.
	LUNAVERSION = "luna 0.1.0"
	// LUNAVERSIONMAJORN is the major version.
	LUNAVERSIONMAJORN = 0
	// LUNAVERSIONMINORN is the minor version.
	LUNAVERSIONMINORN = 1
	// LUNAVERSIONPATCHN is the patch version.
	LUNAVERSIONPATCHN = 0
	// MAXREGISTERS max registers a single function may hold locals in.
	MAXREGISTERS = 250
	// MAXFRAMEREGISTERS registers an instruction operand can address, the
	// ones above MAXREGISTERS only ever hold temporaries.
	MAXFRAMEREGISTERS = 256
	// MAXUPVALUES max allowed upvals referred in a fn scope.
	MAXUPVALUES = 250
	// MAXCONST max amount of consts that a fnproto can store (Bx operand).
	MAXCONST = 65_535
	// MAXJUMP largest displacement a jump can encode (sBx operand).
	MAXJUMP = 32_767
	// INITIALSTACKSIZE stack size at vm startup.
	INITIALSTACKSIZE = 256
	// MAXSTACKSIZE max stack size before the vm reports a stack overflow.
	MAXSTACKSIZE = 1_000_000
	// MAXCALLDEPTH max nested calls before the vm reports a stack overflow.
	MAXCALLDEPTH = 200_000
	// GCGEN0THRESHOLD objects allocated in the young generation before a minor collection.
	GCGEN0THRESHOLD = 1024
	// GCGEN1THRESHOLD objects in the middle generation before it is collected too.
	GCGEN1THRESHOLD = 8192
	// GCGENERATIONS number of generations the heap keeps.
	GCGENERATIONS = 3
)

// FullVersion returns the version and copyright.
func FullVersion() string {
	return fmt.Sprintf("%v %v", LUNAVERSION, Copyright())
}

// Copyright is the copyright to be written out in the CLI.
func Copyright() string {
	return fmt.Sprintf("Copyright (C) %v", time.Now().Year())
}
