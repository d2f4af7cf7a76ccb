package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/geocoder89/expensetracker/internal/client"
	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	state *client.State
	in    *bufio.Scanner
	stdin io.Reader
	out   io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("expensectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("api", client.DefaultBaseURL, "Base URL of the expense tracker API")
	verbose := fs.Bool("v", false, "Log client failures to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	s := &session{
		state: client.NewState(client.NewAPIClient(*baseURL, nil), log),
		in:    bufio.NewScanner(stdin),
		stdin: stdin,
		out:   stdout,
	}

	ctx := context.Background()

	for {
		if s.state.View == client.ViewLoggedOut {
			if !s.authenticate(ctx) {
				return nil
			}
			s.printList()
			continue
		}

		line, ok := s.readLine("> ")
		if !ok {
			return nil
		}

		if quit := s.dispatch(ctx, line); quit {
			return nil
		}
	}
}

// authenticate loops until the user is signed in; false means input ended.
func (s *session) authenticate(ctx context.Context) bool {
	for {
		choice, ok := s.readLine("(l)ogin, (r)egister or (q)uit: ")
		if !ok {
			return false
		}

		choice = strings.ToLower(strings.TrimSpace(choice))
		if choice == "q" || choice == "quit" {
			return false
		}
		if choice != "l" && choice != "r" && choice != "login" && choice != "register" {
			continue
		}

		email, ok := s.readLine("Email: ")
		if !ok {
			return false
		}

		registering := strings.HasPrefix(choice, "r")

		var displayName string
		if registering {
			if displayName, ok = s.readLine("Display name (optional): "); !ok {
				return false
			}
		}

		fmt.Fprint(s.out, "Password: ")
		password, err := readPassword(s.stdin, s.in)
		fmt.Fprintln(s.out)
		if err != nil {
			return false
		}

		if registering {
			err = s.state.Register(ctx, strings.TrimSpace(email), password, strings.TrimSpace(displayName))
		} else {
			err = s.state.Login(ctx, strings.TrimSpace(email), password)
		}

		if err != nil {
			fmt.Fprintf(s.out, "Failed: %v\n", err)
			continue
		}

		fmt.Fprintf(s.out, "Welcome, %s\n", strings.Split(s.state.User.Email, "@")[0])
		return true
	}
}

func (s *session) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "list", "ls":
		s.printList()

	case "total":
		s.printTotal()

	case "refresh":
		if err := s.state.Load(ctx); err != nil {
			fmt.Fprintf(s.out, "Failed: %v\n", err)
			return false
		}
		s.printList()

	case "add":
		s.state.StartAdding()
		s.fillForm(ctx)

	case "edit":
		id, ok := s.pick(fields)
		if !ok {
			return false
		}
		if err := s.state.StartEditing(id); err != nil {
			fmt.Fprintf(s.out, "Failed: %v\n", err)
			return false
		}
		s.fillForm(ctx)

	case "delete", "rm":
		id, ok := s.pick(fields)
		if !ok {
			return false
		}
		err := s.state.Delete(ctx, id, func(e expense.Expense) bool {
			answer, _ := s.readLine(fmt.Sprintf("Delete %q (%s)? [y/N] ", e.Description, formatAmount(e.Amount)))
			return strings.EqualFold(strings.TrimSpace(answer), "y")
		})
		if err != nil {
			fmt.Fprintf(s.out, "Failed: %v\n", err)
			return false
		}
		s.printList()

	case "logout":
		s.state.Logout()
		fmt.Fprintln(s.out, "Logged out.")

	case "quit", "exit", "q":
		return true

	case "help", "?":
		fmt.Fprintln(s.out, "commands: list, add, edit N, delete N, total, refresh, logout, quit")

	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", fields[0])
	}

	return false
}

// fillForm prompts for each field, showing the current value as default.
// An empty answer keeps the default.
func (s *session) fillForm(ctx context.Context) {
	f := &s.state.Form

	fields := []struct {
		label string
		value *string
	}{
		{"Amount", &f.Amount},
		{"Description", &f.Description},
		{"Category (" + categoryList() + ")", &f.Category},
		{"Date (YYYY-MM-DD)", &f.Date},
	}

	for _, field := range fields {
		answer, ok := s.readLine(fmt.Sprintf("%s [%s]: ", field.label, *field.value))
		if !ok {
			s.state.Cancel()
			return
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			*field.value = answer
		}
	}

	if err := s.state.Submit(ctx); err != nil {
		fmt.Fprintf(s.out, "Failed: %v\n", err)
		s.state.Cancel()
		return
	}

	s.printList()
}

// pick resolves the 1-based row number in fields[1] to an expense id.
func (s *session) pick(fields []string) (string, bool) {
	if len(fields) < 2 {
		fmt.Fprintln(s.out, "which one? give the row number from list")
		return "", false
	}

	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > s.state.Count() {
		fmt.Fprintf(s.out, "no row %s\n", fields[1])
		return "", false
	}

	return s.state.Expenses[n-1].ID, true
}

func (s *session) printList() {
	if s.state.Count() == 0 {
		fmt.Fprintln(s.out, "No expenses yet. Use add to record one.")
		s.printTotal()
		return
	}

	for i, e := range s.state.Expenses {
		fmt.Fprintf(s.out, "%3d  %s  %-13s %10s  %s\n", i+1, e.Date.DateString(), expense.Category(e.Category).Label(), formatAmount(e.Amount), e.Description)
	}
	s.printTotal()
}

func (s *session) printTotal() {
	fmt.Fprintf(s.out, "Total: $%s (%d transactions)\n", s.state.Total().StringFixed(2), s.state.Count())
}

func (s *session) readLine(label string) (string, bool) {
	fmt.Fprint(s.out, label)

	if !s.in.Scan() {
		return "", false
	}

	return s.in.Text(), true
}

func readPassword(stdin io.Reader, fallback *bufio.Scanner) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// pipes and tests
	if fallback.Scan() {
		return fallback.Text(), nil
	}
	if err := fallback.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func formatAmount(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func categoryList() string {
	names := make([]string, 0, len(expense.Categories))
	for _, c := range expense.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
