package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/funvibe/ela/internal/object"
)

// DebuggerCLI provides a command-line interface for the debugger
type DebuggerCLI struct {
	debugger *Debugger
	scanner  *bufio.Scanner
	output   io.Writer
	prompt   string
}

// NewDebuggerCLI creates a CLI reading commands from in and attaches it to
// the debugger.
func NewDebuggerCLI(debugger *Debugger, in io.Reader, out io.Writer) *DebuggerCLI {
	cli := &DebuggerCLI{
		debugger: debugger,
		scanner:  bufio.NewScanner(in),
		output:   out,
		prompt:   "(ela) ",
	}
	debugger.Output = out
	debugger.OnStop = cli.onStop
	return cli
}

// onStop is called when the debugger stops
func (cli *DebuggerCLI) onStop(dbg *Debugger, w *Worker) {
	dbg.PrintLocation(w)

	for {
		fmt.Fprint(cli.output, cli.prompt)
		if !cli.scanner.Scan() {
			if err := cli.scanner.Err(); err != nil {
				fmt.Fprintf(cli.output, "\nDebugger error: %v\n", err)
			} else {
				fmt.Fprintf(cli.output, "\nExiting debugger (EOF).\n")
			}
			dbg.Quit()
			return
		}

		parts := strings.Fields(cli.scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "h":
			printHelp(cli.output)
		case "continue", "c":
			dbg.Continue()
			return
		case "step", "s":
			dbg.Step()
			return
		case "next", "n":
			dbg.StepOver(w)
			return
		case "finish", "out":
			dbg.StepOut(w)
			return
		case "detach":
			dbg.Detach()
			return
		case "break", "b":
			if module, line, ok := cli.parseLocation(args); ok {
				dbg.SetBreakpoint(module, line)
				fmt.Fprintf(cli.output, "Breakpoint set at %s:%d\n", module, line)
			}
		case "delete", "d":
			if module, line, ok := cli.parseLocation(args); ok {
				dbg.RemoveBreakpoint(module, line)
				fmt.Fprintf(cli.output, "Breakpoint removed at %s:%d\n", module, line)
			}
		case "list", "l":
			cli.listBreakpoints()
		case "locals", "vars":
			dbg.PrintLocals(w)
		case "stack":
			dbg.PrintStack(w)
		case "backtrace", "bt":
			dbg.PrintCallStack(w)
		case "print", "p":
			cli.print(args, w)
		case "quit", "q", "exit":
			dbg.Quit()
			return
		default:
			fmt.Fprintf(cli.output, "Unknown command: %s. Type 'help' for help.\n", cmd)
		}
	}
}

func printHelp(output io.Writer) {
	help := `Debugger commands:
  help, h                  - Show this help
  continue, c              - Continue execution until next breakpoint
  step, s                  - Stop at the next source line
  next, n                  - Step over function calls
  finish, out              - Step out of current function
  detach                   - Run to the end without stopping
  break, b <module>:<line> - Set breakpoint
  delete, d <module>:<line> - Delete breakpoint
  list, l                  - List all breakpoints
  locals, vars             - Show local variables
  stack                    - Show operand stack
  backtrace, bt            - Show call stack
  print, p <name>          - Print a local or exported global
  quit, q, exit            - Abandon the program
`
	fmt.Fprint(output, help)
}

func (cli *DebuggerCLI) parseLocation(args []string) (string, int, bool) {
	if len(args) == 0 {
		fmt.Fprintf(cli.output, "Usage: break <module>:<line>\n")
		return "", 0, false
	}
	i := strings.LastIndex(args[0], ":")
	if i <= 0 {
		fmt.Fprintf(cli.output, "Invalid format. Use: <module>:<line>\n")
		return "", 0, false
	}
	line, err := strconv.Atoi(args[0][i+1:])
	if err != nil || line <= 0 {
		fmt.Fprintf(cli.output, "Invalid line number: %s\n", args[0][i+1:])
		return "", 0, false
	}
	return args[0][:i], line, true
}

func (cli *DebuggerCLI) listBreakpoints() {
	bps := cli.debugger.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintf(cli.output, "No breakpoints set.\n")
		return
	}
	fmt.Fprintf(cli.output, "Breakpoints:\n")
	for i, bp := range bps {
		fmt.Fprintf(cli.output, "  %d. %s:%d\n", i+1, bp.Module, bp.Line)
	}
}

func (cli *DebuggerCLI) print(args []string, w *Worker) {
	if len(args) != 1 {
		fmt.Fprintf(cli.output, "Usage: print <name>\n")
		return
	}
	name := args[0]
	if v, ok := cli.debugger.Locals(w)[name]; ok {
		fmt.Fprintf(cli.output, "%s\n", object.ShowString(w.ctx, v))
		return
	}
	if v, ok := w.Global(w.handle, name); ok {
		fmt.Fprintf(cli.output, "%s\n", object.ShowString(w.ctx, v))
		return
	}
	fmt.Fprintf(cli.output, "Unknown variable: %s\n", name)
}
