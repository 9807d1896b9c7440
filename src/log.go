package otkernel

// Kernel diagnostics.  The level integer is the same one the command line
// takes: 0 quiet, 1 normal, 2 verbose, 3 debug.

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

var kernelLog = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "otkernel",
	ReportTimestamp: true,
	Level:           log.WarnLevel,
})

func SetKernelLogLevel(level int) {
	switch {
	case level <= 0:
		kernelLog.SetLevel(log.ErrorLevel)
	case level == 1:
		kernelLog.SetLevel(log.WarnLevel)
	case level == 2:
		kernelLog.SetLevel(log.InfoLevel)
	default:
		kernelLog.SetLevel(log.DebugLevel)
	}
}

func SetKernelLogOutput(w io.Writer) {
	kernelLog.SetOutput(w)
}
