// Command useradd provisions a user record in the JSON user database,
// hashing the password with bcrypt. Admin accounts are created the same way
// with -role admin.
package main

import (
	"fmt"
	"log"

	flag "github.com/spf13/pflag"

	"github.com/parley-chat/parley/internal/store"
)

func main() {
	db := flag.String("db", "data/users.json", "path to the user database")
	username := flag.String("user", "", "username to create")
	password := flag.String("pass", "", "password for the new user")
	role := flag.String("role", store.RoleRegular, "account role (regular or admin)")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	users, err := store.OpenFileUserStore(*db)
	if err != nil {
		log.Fatalf("Opening user store: %v", err)
	}

	hash, err := store.HashPassword(*password)
	if err != nil {
		log.Fatalf("Hashing password: %v", err)
	}

	rec := &store.UserRecord{
		Username:     *username,
		PasswordHash: hash,
		Role:         store.NormalizeRole(*role),
	}
	if err := users.Create(rec); err != nil {
		log.Fatalf("Creating user: %v", err)
	}

	fmt.Printf("Created %s user %q in %s\n", rec.Role, rec.Username, *db)
}
