package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
)

const usage = `usage:
  gateway                               serve HTTP
  gateway set-role <username> <role>    teacher | reviewer | admin
  gateway service-token <client> [ttl]  print a paper API token for a machine client`

// runCommand handles the operator subcommands. Output goes to stdout so a
// token can be captured by a deploy script.
func runCommand(ctx context.Context, dbh *sql.DB, a *auth.AuthService, args []string) error {
	switch {
	case len(args) == 3 && args[0] == "set-role":
		if err := auth.SetRole(ctx, dbh, args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", args[1], args[2])
		return nil
	case (len(args) == 2 || len(args) == 3) && args[0] == "service-token":
		var ttl time.Duration
		if len(args) == 3 {
			d, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("ttl: %w", err)
			}
			ttl = d
		}
		tok, err := a.IssueServiceToken(args[1], ttl)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}
	return fmt.Errorf("unknown command\n%s", usage)
}
