package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "payments.db"

const usage = "Usage: adduser -user <login> [-name <full name>] [-role Admin|User] [-password <password>] [-db <db_path>]"

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	login    string
	fullName string
	role     string
	password string
	dbPath   string
}

func parseOptions(args []string, stdout, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.login, "user", "", "Login (latin letters and digits)")
	fs.StringVar(&o.fullName, "name", "", "Full name (defaults to the login)")
	fs.StringVar(&o.role, "role", string(models.RoleUser), "Role: Admin or User")
	fs.StringVar(&o.password, "password", "", "Password, prompted for when omitted")
	fs.StringVar(&o.dbPath, "db", defaultDBPath, "Path to database file, DB_PATH overrides the default")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.login == "" {
		fmt.Fprintln(stdout, usage)
		fs.PrintDefaults()
		return o, errors.New("missing required flags: user")
	}

	explicitDB := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "db" {
			explicitDB = true
		}
	})
	if env := os.Getenv("DB_PATH"); env != "" && !explicitDB {
		o.dbPath = env
	}
	return o, nil
}

// newUser builds and validates the account described by o.
func (o options) newUser() (*models.User, error) {
	role, err := models.ParseRole(o.role)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Login:    strings.TrimSpace(o.login),
		FullName: strings.TrimSpace(o.fullName),
		Role:     role,
	}
	if u.FullName == "" {
		u.FullName = u.Login
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stdout, stderr)
	if err != nil {
		return err
	}
	u, err := opts.newUser()
	if err != nil {
		return err
	}

	password := opts.password
	if password == "" {
		if password, err = promptPassword(stdin, stdout); err != nil {
			return err
		}
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	db, err := storage.NewDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	created, err := addUser(context.Background(), db, u, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "User %s (%s) created successfully with ID %d\n", created.Login, created.Role, created.ID)
	return nil
}

func addUser(ctx context.Context, db *storage.DB, u *models.User, password string) (*models.User, error) {
	taken, err := db.LoginTaken(ctx, u.Login, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("user %s already exists", u.Login)
	}

	if u.PasswordHash, err = auth.HashPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	created, err := db.CreateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// promptPassword reads a password without echo from a terminal, or a
// single line from any other reader. An empty stream yields "".
func promptPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "Password: ")
	defer fmt.Fprintln(stdout)

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
