package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
	"github.com/voltlab/pfcboost"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the
// directory and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	// Create directory <dir>, if needed
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		err2 := os.MkdirAll(dir, 0775)
		if err2 != nil {
			return "", err2
		}
	}

	// Create an empty file dir/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to
// find config files and the filename and suffix.
func setupViper() error {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error finding user home dir: %s\n", err)
	}
	dotPfcsim := filepath.Join(home, ".pfcsim")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotPfcsim, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/pfcsim"))
	viper.AddConfigPath(dotPfcsim)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	logFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Could not open log file '%s'", pfname))
	}
	logger := log.New(logFile, "", log.LstdFlags)
	logger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return logger
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	pfcboost.Build.Date = buildDate
	pfcboost.Build.Githash = githash

	printVersion := flag.Bool("version", false, "print version and quit")
	cycles := flag.Int("cycles", 192000, "control cycles to simulate (64000 per second)")
	tracefile := flag.String("trace", "", "write the per-cycle trace to this .npy file")
	dip := flag.Float64("dip", 0, "scale the mains to this fraction for 0.2 s mid-run (0 disables)")
	loadOhms := flag.Float64("load", 200, "output load resistance in ohms")
	debug := flag.Bool("debug", false, "dump the final controller snapshot")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	memprofile := flag.String("memprofile", "", "write memory profile to given file")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is pfcsim version %s\n", pfcboost.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		fmt.Printf("Running on %d CPUs.\n", runtime.NumCPU())
		os.Exit(0)
	}

	runID := ulid.Make().String()
	banner := fmt.Sprintf("\nThis is pfcsim version %s (git commit %s), run %s\n",
		pfcboost.Build.Version, githash, runID)
	fmt.Print(banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(home, ".pfcsim", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	pfcboost.ProblemLogger = startLogger(problemname)
	pfcboost.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems to %s\n", problemname)
	fmt.Printf("Logging updates  to %s\n\n", logname)
	pfcboost.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(); err != nil {
		panic(err)
	}
	cfg, err := pfcboost.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	plant := pfcboost.NewBoostPlant()
	plant.SetLoad(*loadOhms)
	plant.PWMPeriod = cfg.PWMPeriod

	sim, err := pfcboost.NewSimulator(cfg, plant)
	if err != nil {
		log.Fatal(err)
	}
	sim.Trace = pfcboost.NewTraceRecorder()
	if *tracefile != "" {
		sim.Stream, err = pfcboost.NewTraceWriter(*tracefile)
		if err != nil {
			log.Fatal(err)
		}
	}

	if frac := *dip; frac > 0 && frac < 1 {
		dipLen := int(plant.SampleRate / 5) // 0.2 s
		dipAt := *cycles * 3 / 5
		if dipAt+dipLen >= *cycles {
			log.Fatalf("run of %d cycles is too short for a mains dip", *cycles)
		}
		nominal := plant.LineAmplitude
		sim.Run(dipAt)
		plant.SetLineAmplitude(nominal * frac)
		pfcboost.UpdateLogger.Printf("run %s: mains dipped to %.0f%% for %d cycles",
			runID, 100*frac, dipLen)
		sim.Run(dipLen)
		plant.SetLineAmplitude(nominal)
		pfcboost.UpdateLogger.Printf("run %s: mains restored", runID)
		sim.Run(*cycles - dipAt - dipLen)
	} else {
		sim.Run(*cycles)
	}

	summary := pfcboost.Summarize(sim.Trace, plant.VoltsFullScale, plant.AmpsFullScale, cfg.MaxDuty)
	elapsed := time.Since(pfcboost.StartTime).Round(time.Millisecond)
	fmt.Printf("Run %s finished in state %s, faults: %s (%d cycles in %v)\n\n%s",
		runID, sim.Controller.State(), sim.Controller.Faults(), sim.Cycles(), elapsed, summary)
	pfcboost.UpdateLogger.Printf("run %s summary:\n%s", runID, summary)

	if sim.Stream != nil {
		if err := sim.Stream.Close(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("\nWrote %d trace rows to %s\n", sim.Stream.Rows(), *tracefile)
	}

	if *debug {
		spew.Dump(sim.Controller.Snapshot())
	}

	writeMemoryProfile(memprofile)
}

// writeMemoryProfile writes the memory use profile to the indicated
// file. If `memprofile` points to an empty string, do not write.
func writeMemoryProfile(memprofile *string) {
	if *memprofile == "" {
		return
	}

	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
