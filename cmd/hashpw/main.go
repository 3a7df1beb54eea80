// Command hashpw reads a password and prints its bcrypt hash, for seeding
// the users table by hand.
//
// On a terminal the password is read twice without echo; otherwise the
// first line of standard input is used.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/server/password"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (default 10)")
	flag.Parse()

	if err := run(os.Stdin, int(os.Stdin.Fd()), os.Stdout, os.Stderr, *cost); err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
}

func run(stdin io.Reader, fd int, out, prompt io.Writer, cost int) error {
	pw, err := readInput(stdin, fd, prompt)
	if err != nil {
		return err
	}

	if n := len(pw); n < common.PasswordMinLen || n > common.PasswordMaxLen {
		return fmt.Errorf("password must be %d to %d bytes, got %d", common.PasswordMinLen, common.PasswordMaxLen, n)
	}

	hash, err := password.NewHasher(cost).Hash(pw)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, hash)
	return err
}

func readInput(stdin io.Reader, fd int, prompt io.Writer) (string, error) {
	if !isTerminal(fd) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	first, err := promptPassword(fd, prompt, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassword(fd, prompt, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func promptPassword(fd int, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
