package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/papercut-news/go-papercut/internal/auth"
	"github.com/papercut-news/go-papercut/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to papercut.yaml (default: standard search path)")
		createUser = flag.Bool("create", false, "Create a new user")
		listUsers  = flag.Bool("list", false, "List all users")
		deleteUser = flag.Bool("delete", false, "Delete a user")
		updateUser = flag.Bool("update", false, "Update a user's password")
		verifyUser = flag.Bool("verify", false, "Verify a username/password pair")
		username   = flag.String("username", "", "Username for user operations")
	)
	flag.Parse()

	if !*createUser && !*listUsers && !*deleteUser && !*updateUser && !*verifyUser {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -create -username alice\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -update -username alice\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -delete -username alice\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := auth.Open(cfg.AuthDBPath)
	if err != nil {
		log.Fatalf("Failed to open user database: %v", err)
	}
	defer store.Close()

	switch {
	case *createUser:
		requireUsername(*username)
		password, err := promptPassword(true)
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if err := store.AddUser(*username, password); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		fmt.Printf("User %s created\n", *username)

	case *listUsers:
		users, err := store.ListUsers()
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found")
			return
		}
		for _, u := range users {
			lastLogin := "never"
			if u.LastLogin.Valid {
				lastLogin = u.LastLogin.Time.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-6d %-24s created %s, last login %s\n",
				u.ID, u.Username, u.CreatedAt.Format("2006-01-02"), lastLogin)
		}

	case *deleteUser:
		requireUsername(*username)
		if err := store.DeleteUser(*username); err != nil {
			log.Fatalf("Failed to delete user: %v", err)
		}
		fmt.Printf("User %s deleted\n", *username)

	case *updateUser:
		requireUsername(*username)
		password, err := promptPassword(true)
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if err := store.SetPassword(*username, password); err != nil {
			log.Fatalf("Failed to update user: %v", err)
		}
		fmt.Printf("Password updated for %s\n", *username)

	case *verifyUser:
		requireUsername(*username)
		password, err := promptPassword(false)
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		ok, err := store.IsValidUser(*username, password)
		if err != nil {
			log.Fatalf("Failed to verify user: %v", err)
		}
		if !ok {
			fmt.Println("Invalid credentials")
			os.Exit(1)
		}
		fmt.Println("Credentials OK")
	}
}

func requireUsername(username string) {
	if username == "" {
		log.Fatal("Username is required (-username)")
	}
}

// promptPassword reads a password without echo, optionally asking twice.
func promptPassword(confirm bool) (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %v", err)
	}
	fmt.Println()

	if confirm {
		fmt.Print("Confirm password: ")
		confirmPassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", fmt.Errorf("failed to read password confirmation: %v", err)
		}
		fmt.Println()
		if string(password) != string(confirmPassword) {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	if len(password) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters")
	}
	return string(password), nil
}
