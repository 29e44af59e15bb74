package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/4lexvav/logkv/pkg/kv"
	"github.com/4lexvav/logkv/pkg/logkv"
)

func main() {
	host := flag.String("host", logkv.DefaultHost, "Server host")
	port := flag.Int("port", logkv.DefaultPort, "Server port")
	timeout := flag.Duration("timeout", 5*time.Second, "Response read timeout")
	flag.Parse()

	client, err := logkv.Connect(
		logkv.WithHost(*host),
		logkv.WithPort(*port),
		logkv.WithReadTimeout(*timeout),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer client.Close()

	if flag.NArg() > 0 {
		os.Exit(runOne(client, flag.Args()))
	}

	runInteractive(client, *host, *port)
}

// runOne executes a single subcommand and returns the process exit code:
// non-zero when the key was not found on get/remove, zero otherwise.
func runOne(client *logkv.Client, args []string) int {
	cmd := strings.ToLower(args[0])

	switch {
	case cmd == "set" && len(args) == 3:
		if err := client.Set(args[1], args[2]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case cmd == "get" && len(args) == 2:
		value, found, err := client.Get(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if !found {
			fmt.Println("Key not found")
			return 1
		}
		fmt.Println(value)
		return 0

	case cmd == "remove" && len(args) == 2:
		err := client.Remove(args[1])
		if errors.Is(err, kv.ErrKeyNotFound) {
			fmt.Fprintln(os.Stderr, "Key not found")
			return 1
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case cmd == "reset" && len(args) == 1:
		if err := client.Reset(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

const usage = `Usage:
  logkv-cli [flags] set <key> <value>
  logkv-cli [flags] get <key>
  logkv-cli [flags] remove <key>
  logkv-cli [flags] reset

With no subcommand an interactive session is started.`

func runInteractive(client *logkv.Client, host string, port int) {
	fmt.Printf("Connected to %s:%d\n", host, port)
	fmt.Println("Type commands ('help' for information, 'exit' to quit).")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("input error:", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return
		}
		if line == "help" {
			fmt.Println(usage)
			continue
		}

		args, err := shellquote.Split(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}

		runOne(client, args)
	}
}
