package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/service"
)

// issue-token mints a signed token for operators and load tests. Accounts
// live in the central account service, so no user lookup happens here.
func main() {
	var (
		kind   string
		userID int64
		roleID int64
		perms  string
	)
	flag.StringVar(&kind, "type", string(service.TokenTypeAdmin), "Token type: admin or student")
	flag.Int64Var(&userID, "user", 0, "Admin or participant id")
	flag.Int64Var(&roleID, "role", 0, "Admin role id")
	flag.StringVar(&perms, "permissions", "all", "Comma-separated permission codes, or \"all\"")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	tokenType := service.TokenType(kind)
	if tokenType != service.TokenTypeAdmin && tokenType != service.TokenTypeStudent {
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", kind)
		os.Exit(2)
	}

	var permissions []string
	if tokenType == service.TokenTypeAdmin {
		var err error
		if permissions, err = parsePermissions(perms); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
	}

	auth := service.NewAuthService(config.Load())
	token, err := auth.IssueToken(tokenType, userID, roleID, permissions)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error signing token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func parsePermissions(raw string) ([]string, error) {
	known := make(map[string]bool, len(model.AllPermissions))
	all := make([]string, 0, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		known[string(p)] = true
		all = append(all, string(p))
	}

	if strings.TrimSpace(raw) == "all" {
		return all, nil
	}

	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !known[p] {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}
