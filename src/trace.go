package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:	Save kernel events to a CSV trace file.
 *
 * Description: One row per radio termination, panic or watchdog kill,
 *		for reading into a spreadsheet later.
 *
 *		There are two alternatives here.
 *
 *		-L tracefile		Specify full file path.
 *
 *		-l tracedir		Daily names will be created here.
 *
 *		Use one or the other but not both.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"
)

const TRACE_DAILY_NAME = "%Y-%m-%d.csv"

const TRACE_DEFAULT_TIMESTAMP = "%Y-%m-%dT%H:%M:%SZ"

var traceHeader = []string{"utime", "isotime", "event", "phase", "code", "detail"}

type TraceLog struct {
	dailyNames      bool
	path            string /* Directory when dailyNames, otherwise the file. */
	timestampFormat string

	fp       *os.File
	w        *csv.Writer
	openName string

	now func() time.Time
}

/*------------------------------------------------------------------
 *
 * Function:	NewTraceLog
 *
 * Inputs:	dailyNames	- True if daily names should be generated.
 *				  In this case path is a directory.
 *
 *		path		- Trace file name or just directory.
 *				  Empty string disables the trace; nil is
 *				  returned and is safe to use.
 *
 *		timestampFormat	- strftime format for the isotime column.
 *
 *------------------------------------------------------------------*/

func NewTraceLog(dailyNames bool, path string, timestampFormat string) *TraceLog {
	if len(path) == 0 {
		return nil
	}

	var t = &TraceLog{
		dailyNames:      dailyNames,
		path:            path,
		timestampFormat: IfThenElse(timestampFormat == "", TRACE_DEFAULT_TIMESTAMP, timestampFormat),
		now:             func() time.Time { return time.Now().UTC() },
	}

	if !dailyNames {
		kernelLog.Info("trace file", "path", path)
		return t
	}

	var stat, statErr = os.Stat(path)
	if statErr == nil {
		if !stat.IsDir() {
			kernelLog.Error("trace location is not a directory, using current directory", "path", path)
			t.path = "."
		}
	} else {
		// Parent directory must exist.  We don't create multiple levels.
		var mkdirErr = os.Mkdir(path, 0755)
		if mkdirErr == nil {
			kernelLog.Info("trace location created", "path", path)
		} else {
			kernelLog.Error("failed to create trace location, using current directory", "path", path, "err", mkdirErr)
			t.path = "."
		}
	}

	return t
}

func (t *TraceLog) open(now time.Time) bool {
	var fullPath = t.path

	if t.dailyNames {
		var fname, err = strftime.Format(TRACE_DAILY_NAME, now)
		if err != nil {
			kernelLog.Error("bad trace file name format", "err", err)
			return false
		}

		// Close current file if name has changed.
		if t.fp != nil && fname != t.openName {
			t.Close()
		}

		if t.fp != nil {
			return true
		}

		fullPath = filepath.Join(t.path, fname)
		t.openName = fname
	} else if t.fp != nil {
		return true
	}

	// Header only if this will be the first line.
	var _, statErr = os.Stat(fullPath)
	var alreadyThere = statErr == nil

	var f, openErr = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644) //nolint:gosec
	if openErr != nil {
		kernelLog.Error("can't open trace file for write", "path", fullPath, "err", openErr)
		t.openName = ""
		return false
	}

	t.fp = f
	t.w = csv.NewWriter(f)

	if !alreadyThere {
		_ = t.w.Write(traceHeader)
	}

	return true
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save one kernel event.
 *
 * Inputs:	event	- Short name: "terminate", "panic", "watchdog".
 *
 *		phase	- RFA phase, or -1 when not applicable.
 *
 *		code	- Completion or panic code.
 *
 *------------------------------------------------------------------*/

func (t *TraceLog) Write(event string, phase int, code int, detail string) {
	if t == nil {
		return
	}

	var now = t.now()

	if !t.open(now) {
		return
	}

	var itime, err = strftime.Format(t.timestampFormat, now)
	if err != nil {
		itime = now.Format(time.RFC3339)
	}

	_ = t.w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		itime,
		event,
		strconv.Itoa(phase),
		strconv.Itoa(code),
		detail,
	})
	t.w.Flush()
}

func (t *TraceLog) Close() {
	if t == nil || t.fp == nil {
		return
	}

	t.w.Flush()
	t.fp.Close()

	t.fp = nil
	t.w = nil
	t.openName = ""
}
