package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tbourn/go-tweet-feed/internal/auth"
)

// hashPassword implements the hash-password subcommand. The password comes
// from the first argument, or the first line of in when no argument is given.
// It returns the process exit code.
func hashPassword(args []string, in io.Reader, out, errOut io.Writer) int {
	var pw string
	if len(args) > 0 {
		pw = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			fmt.Fprintf(errOut, "read password: %v\n", err)
			return 1
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if strings.TrimSpace(pw) == "" {
		fmt.Fprintln(errOut, "usage: server hash-password <password>  (or pipe it on stdin)")
		return 2
	}

	hash, err := auth.HashPassword(pw)
	if err != nil {
		fmt.Fprintf(errOut, "hash password: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, hash)
	return 0
}
