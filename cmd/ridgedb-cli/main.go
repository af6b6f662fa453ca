// Command ridgedb-cli is an interactive shell over an embedded storage
// engine: no network hop, the engine lives in this process.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridgedb/ridgedb/internal/bootstrap"
	"github.com/ridgedb/ridgedb/internal/shell"
)

const prompt = "ridgedb> "

func main() {
	engine, logger, err := bootstrap.OpenCLIEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ridgedb-cli:", err)
		os.Exit(1)
	}
	defer engine.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		for range sigCh {
			fmt.Print("\nuse exit command to exit or use Ctrl+D\n" + prompt)
		}
	}()

	fmt.Print("\033[2J\033[1;1H")

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print(prompt)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			res, err := shell.Dispatch(engine, line)
			if err != nil {
				fmt.Println(err)
			} else {
				switch {
				case res.Exit:
					return
				case res.ClearScreen:
					fmt.Print("\033[2J\033[1;1H")
				case res.Output != "":
					fmt.Println(res.Output)
				}
			}
		}
		fmt.Print(prompt)
	}

	if err := scanner.Err(); err != nil {
		logger.WithError(err).Error("input scan failed")
	}
}
