package pfcboost

import (
	"log"
	"os"
	"time"
)

// BuildInfo can contain compile-time information about the build
type BuildInfo struct {
	Version string
	Githash string
	Date    string
}

// Build is a global holding compile-time information about the build
var Build = BuildInfo{
	Version: "0.3.0",
	Githash: "no git hash computed",
	Date:    "no build date computed",
}

// StartTime is a global holding the time init() was run
var StartTime time.Time

// ProblemLogger logs warning messages: fault latches, rejected
// configurations. The simulator binary redirects it to a rotating
// file.
var ProblemLogger *log.Logger

// UpdateLogger logs routine progress messages: startup completion,
// fault recovery, run banners.
var UpdateLogger *log.Logger

func init() {
	StartTime = time.Now()

	// The pfcsim main program will override these, but at least
	// initialize them with sensible values.
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
	UpdateLogger = log.New(os.Stderr, "", log.LstdFlags)
}
