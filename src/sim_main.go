package otkernel

/*------------------------------------------------------------------
 *
 * Name: 	SimMain
 *
 * Purpose:   	Run the kernel for a while against a simulated radio and
 *		report what it did.
 *
 * Usage:	otkernel-sim [options]
 *
 *		The device and the traffic it hears come from the config
 *		file, see FindConfig for where it is looked for.
 *
 * Returns:	Process exit code.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

const SIM_DEFAULT_TICKS = 10 * 1024

func SimMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("otkernel-sim", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var configFile = flags.StringP("config", "c", "", "Device configuration file.  Default: search the usual places.")
	var ticks = flags.IntP("ticks", "n", SIM_DEFAULT_TICKS, "How long to run, ticks of 1/1024 second.")
	var seed = flags.Int64P("seed", "s", 1, "Random seed for the platform and radio.")
	var logLevel = flags.IntP("log-level", "d", 1, "Kernel log level, 0 quiet to 3 debug.")
	var traceFile = flags.StringP("trace-file", "L", "", "Write kernel events to this CSV file.")
	var traceDir = flags.StringP("trace-dir", "l", "", "Write kernel events to daily CSV files in this directory.")
	var timestampFormat = flags.StringP("timestamp-format", "T", "", "strftime format for trace time stamps.")
	var version = flags.BoolP("version", "v", false, "Print version and exit.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "otkernel-sim - Run the DASH7 Mode 2 kernel on a simulated radio.\n")
		fmt.Fprintf(stderr, "\n")
		flags.PrintDefaults()
	}

	var parseErr = flags.Parse(args)
	if parseErr != nil {
		return 2
	}

	if *help {
		flags.Usage()
		return 0
	}

	if *version {
		PrintVersion(stdout, false)
		return 0
	}

	if *traceFile != "" && *traceDir != "" {
		fmt.Fprintf(stderr, "Use only one of --trace-file and --trace-dir.\n")
		return 2
	}

	if *ticks <= 0 {
		fmt.Fprintf(stderr, "--ticks must be positive, not %d.\n", *ticks)
		return 2
	}

	SetKernelLogOutput(stderr)
	SetKernelLogLevel(*logLevel)

	var cfg, cfgName, cfgErr = FindConfig(*configFile)
	if cfgErr != nil {
		fmt.Fprintf(stderr, "%s\n", cfgErr)
		return 1
	}

	var trace *TraceLog
	if *traceDir != "" {
		trace = NewTraceLog(true, *traceDir, *timestampFormat)
	} else {
		trace = NewTraceLog(false, *traceFile, *timestampFormat)
	}
	defer trace.Close()

	var sim, simErr = NewSimulation(cfg, *seed, trace)
	if simErr != nil {
		fmt.Fprintf(stderr, "%s\n", simErr)
		return 1
	}

	fmt.Fprintf(stdout, "Config: %s\n", IfThenElse(cfgName == "", "(built in defaults)", cfgName))

	sim.Run(*ticks)
	sim.PrintSummary(stdout)

	return 0
}
