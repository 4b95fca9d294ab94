// memctl is an interactive client for a running cachewire-server.
//
// Usage:
//
//	memctl [addr]          Connect to addr (default 127.0.0.1:4321)
//
// Commands (in REPL):
//
//	get <key>                 Retrieve a value
//	set <key> <value>         Insert or overwrite a value
//	add <key> <value>         Insert only if the key is absent
//	replace <key> <value>     Overwrite only if the key is present
//	delete <key>              Remove a key
//	help                      Show this help
//	exit / quit / q           Exit
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/cachewire/cachewire/internal/wire"
)

func main() {
	addr := "127.0.0.1:4321"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memctl: dial %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	repl := &REPL{addr: addr, conn: conn}
	if err := repl.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "memctl: %v\n", err)
		os.Exit(1)
	}
}

// REPL is the interactive command loop.
type REPL struct {
	addr  string
	conn  net.Conn
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.memctl_history"
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("memctl - cachewire client (%s)\n", r.addr)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("memctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		default:
			r.runCommand(line)
		}
	}

	r.saveHistory()
	return nil
}

// runCommand parses one line with the text-command parser, sends it to the
// server as a binary packet, and prints the response. The wire package's
// text parser and codec do the actual protocol work; this just drives the
// socket.
func (r *REPL) runCommand(line string) {
	req, err := wire.ParseTextCommand(line)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if _, err := r.conn.Write(wire.Encode(req)); err != nil {
		fmt.Printf("connection error: %v\n", err)
		return
	}

	r.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := readResponse(r.conn)
	if err != nil {
		fmt.Printf("connection error: %v\n", err)
		return
	}

	if resp.Header.Status != wire.StatusOK {
		fmt.Printf("ERROR %#04x\n", resp.Header.Status)
		return
	}
	if len(resp.Value) > 0 {
		fmt.Println(string(resp.Value))
		return
	}
	fmt.Println("OK")
}

func readResponse(conn net.Conn) (*wire.Packet, error) {
	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	bodyLen := int(header[8])<<24 | int(header[9])<<16 | int(header[10])<<8 | int(header[11])
	rest := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, rest); err != nil {
			return nil, err
		}
	}
	return wire.Decode(append(header, rest...))
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"get", "set", "add", "replace", "delete",
		"help", "exit", "quit", "q",
	}

	var completions []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}
	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  get <key>                 Retrieve a value")
	fmt.Println("  set <key> <value>         Insert or overwrite a value")
	fmt.Println("  add <key> <value>         Insert only if the key is absent")
	fmt.Println("  replace <key> <value>     Overwrite only if the key is present")
	fmt.Println("  delete <key>              Remove a key")
	fmt.Println("  help                      Show this help")
	fmt.Println("  exit / quit / q           Exit")
}
