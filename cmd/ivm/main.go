// cmd/ivm is the engine's command-line front end. It loads a SQL schema
// (CREATE TABLE / CREATE VIEW statements), compiles it to a circuit, and
// either replays a batch-file/fixture of step deltas through it
// non-interactively (run), or opens a prompt that accepts ad hoc SQL
// statements and step batches against a live circuit (repl).
//
// Grounded on cmd/sentra/main.go's alias-table command dispatch and
// internal/repl/repl.go's read-lex-parse-compile-execute loop,
// retargeted from a scripting-language REPL onto a step-at-a-time
// dataflow loop. Uses the standard flag package per subcommand rather
// than a framework, matching the teacher's hand-rolled os.Args dispatch.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"sentra/internal/circuit"
	"sentra/internal/source/dbsource"
	"sentra/internal/source/wsource"
	"sentra/internal/sql/compiler"
	"sentra/internal/sql/parser"
	"sentra/internal/zset"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"c": "compile",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("ivm", version)
	case "compile":
		fs := flag.NewFlagSet("compile", flag.ExitOnError)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fatalf("usage: ivm compile <schema.sql>")
		}
		runCompileOnly(fs.Arg(0))
	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		sf := registerSourceFlags(fs)
		fs.Parse(rest)
		if fs.NArg() != 1 {
			fatalf("usage: ivm run <schema.sql>")
		}
		runEngine(fs.Arg(0), false, sf)
	case "repl":
		fs := flag.NewFlagSet("repl", flag.ExitOnError)
		schema := fs.String("schema", "", "optional schema file to preload")
		sf := registerSourceFlags(fs)
		fs.Parse(rest)
		runEngine(*schema, true, sf)
	default:
		fatalf("unknown command %q (try 'ivm help')", args[0])
	}
}

func showUsage() {
	fmt.Println(`ivm - incremental view maintenance engine

Usage:
  ivm run <schema.sql> [source flags]    compile the file and maintain its
                                          views against step batches read
                                          from stdin
  ivm repl [-schema=file.sql] [source flags]
                                          interactive session: ad hoc SQL
                                          statements and step batches
                                          against a live circuit
  ivm compile <schema.sql>               parse and compile only; report
                                          errors
  ivm version                            print the version
  ivm help                                show this message

Source flags (run and repl; each source runs alongside stdin and feeds
the same circuit):
  -db-driver, -db-dsn, -db-query, -db-pk, -db-input, -db-interval
      poll a SQL table through internal/source/dbsource
  -ws-url
      read step batches off a WebSocket connection through
      internal/source/wsource

Step batch line (spec.md §6):
  {"input":"<table>","ops":[{"op":"insert","row":{...}}, ...]}

repl-only input: a line beginning with CREATE or SELECT (case
insensitive) is compiled as SQL against the running circuit instead of
being parsed as a step batch.

Interactive-session commands:
  snapshot <view>          print a view's current contents and row count
  exit | quit              end the session`)
}

// sourceFlags holds the optional external-producer settings shared by
// the run and repl subcommands.
type sourceFlags struct {
	dbDriver   string
	dbDSN      string
	dbQuery    string
	dbPK       string
	dbInput    string
	dbInterval time.Duration
	wsURL      string
}

func registerSourceFlags(fs *flag.FlagSet) *sourceFlags {
	sf := &sourceFlags{}
	fs.StringVar(&sf.dbDriver, "db-driver", "", "optional dbsource driver (mysql, postgres, sqlite3, sqlserver)")
	fs.StringVar(&sf.dbDSN, "db-dsn", "", "dbsource data source name")
	fs.StringVar(&sf.dbQuery, "db-query", "", "dbsource polling query")
	fs.StringVar(&sf.dbPK, "db-pk", "", "dbsource primary-key column")
	fs.StringVar(&sf.dbInput, "db-input", "", "circuit table id the dbsource poller feeds")
	fs.DurationVar(&sf.dbInterval, "db-interval", time.Second, "dbsource poll interval")
	fs.StringVar(&sf.wsURL, "ws-url", "", "optional wsource WebSocket URL to read step batches from")
	return sf
}

func fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "ivm: "+format+"\n", a...)
	os.Exit(1)
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func runCompileOnly(path string) {
	src := readFile(path)
	_, _, errs := build(circuit.New(), src)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}
	fmt.Println("ok")
}

// build parses and compiles src's statements onto an existing circuit,
// returning the compiler (so a repl session can keep accumulating
// views across calls) and the views produced by this call.
func build(c *circuit.Circuit, src string) (*compiler.Compiler, map[string]*compiler.ViewInfo, []error) {
	stmts, err := parser.ParseProgram(src)
	if err != nil {
		return nil, nil, []error{err}
	}
	comp := compiler.New(c)
	if err := comp.Compile(stmts); err != nil {
		return nil, nil, append([]error{err}, comp.Errors()...)
	}
	return comp, comp.Views(), nil
}

type batchLine struct {
	Input string            `json:"input"`
	Ops   []circuit.DeltaOp `json:"ops"`
}

// session holds the live circuit plus every view's integrated
// subscriber, so either a preloaded schema or ad hoc repl statements
// can register new views as they're compiled. stepMu serializes
// Circuit.Step calls across the stdin loop and any external producer
// goroutines (dbsource, wsource) sharing this circuit.
type session struct {
	circuit *circuit.Circuit
	subs    map[string]*circuit.Subscriber
	stepMu  sync.Mutex
}

func newSession() *session {
	return &session{circuit: circuit.New(), subs: make(map[string]*circuit.Subscriber)}
}

// step applies one batch of deltas to the circuit, serialized against
// every other caller of step on this session.
func (s *session) step(ops map[string][]circuit.DeltaOp) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if err := s.circuit.Step(ops); err != nil {
		for _, se := range s.circuit.SinkErrors() {
			fmt.Fprintf(os.Stderr, "ivm: %v\n", se)
		}
		return err
	}
	return nil
}

func (s *session) subscribeViews(views map[string]*compiler.ViewInfo) error {
	for name, vi := range views {
		sub := circuit.NewSubscriber(func(v interface{}) string { return fmt.Sprint(v) })
		if vi.OrderBy != nil {
			sub.SetOrderBy(vi.OrderBy)
		}
		if vi.HasLimit {
			sub.SetLimit(vi.Limit)
		}
		if err := s.circuit.Subscribe(vi.StreamID, sub.Sink()); err != nil {
			return fmt.Errorf("subscribing view %q: %w", name, err)
		}
		if err := s.circuit.Subscribe(vi.StreamID, printSink(name)); err != nil {
			return fmt.Errorf("subscribing view %q: %w", name, err)
		}
		s.subs[name] = sub
	}
	return nil
}

func runEngine(schemaPath string, interactive bool, sf *sourceFlags) {
	s := newSession()
	if schemaPath != "" {
		src := readFile(schemaPath)
		_, views, errs := build(s.circuit, src)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			os.Exit(1)
		}
		if err := s.subscribeViews(views); err != nil {
			fatalf("%v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx, interactive) })

	if sf != nil && sf.dbDriver != "" {
		poller, err := dbsource.Open(dbsource.Config{
			Driver:   sf.dbDriver,
			DSN:      sf.dbDSN,
			InputID:  sf.dbInput,
			Query:    sf.dbQuery,
			PKColumn: sf.dbPK,
			Interval: sf.dbInterval,
		})
		if err != nil {
			fatalf("%v", err)
		}
		defer poller.Close()
		g.Go(func() error { return poller.Run(gctx, s.step) })
	}

	if sf != nil && sf.wsURL != "" {
		client, err := wsource.Dial(sf.wsURL)
		if err != nil {
			fatalf("%v", err)
		}
		defer client.Close()
		g.Go(func() error { return client.Run(gctx, s.step) })
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		fatalf("%v", err)
	}
}

func printSink(view string) circuit.Sink {
	return func(delta *zset.Set) error {
		if delta.IsEmpty() {
			return nil
		}
		for _, e := range delta.Entries() {
			fmt.Printf("[%s] %+v weight=%d\n", view, e.Value, e.Weight)
		}
		return nil
	}
}

func looksLikeSQL(line string) bool {
	upper := strings.ToUpper(strings.TrimSpace(line))
	return strings.HasPrefix(upper, "CREATE") || strings.HasPrefix(upper, "SELECT")
}

func (s *session) loop(ctx context.Context, allowSQL bool) error {
	promptInteractive := isatty.IsTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for {
		if promptInteractive {
			fmt.Print("ivm> ")
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if view, ok := strings.CutPrefix(line, "snapshot "); ok {
			s.printSnapshot(view)
			continue
		}
		if allowSQL && looksLikeSQL(line) {
			_, views, errs := build(s.circuit, line)
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				continue
			}
			if err := s.subscribeViews(views); err != nil {
				fmt.Fprintf(os.Stderr, "ivm: %v\n", err)
			}
			continue
		}
		s.stepLine(line)
	}
}

func (s *session) printSnapshot(view string) {
	sub, known := s.subs[view]
	if !known {
		fmt.Fprintf(os.Stderr, "ivm: unknown view %q\n", view)
		return
	}
	fmt.Printf("[%s] %d rows\n", view, sub.Count())
	for _, row := range sub.Values() {
		fmt.Printf("[%s] %+v\n", view, row)
	}
}

func (s *session) stepLine(line string) {
	var batch batchLine
	if err := json.Unmarshal([]byte(line), &batch); err != nil {
		fmt.Fprintf(os.Stderr, "ivm: bad step line: %v\n", err)
		return
	}
	if err := s.step(map[string][]circuit.DeltaOp{batch.Input: batch.Ops}); err != nil {
		fmt.Fprintf(os.Stderr, "ivm: step error: %v\n", err)
	}
}
