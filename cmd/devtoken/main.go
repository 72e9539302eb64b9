// Command devtoken mints an access token for local testing:
//
//	go run ./cmd/devtoken -user 900 -role OPERATOR
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/utils"
)

func main() {
	_ = godotenv.Load()
	user := flag.Uint64("user", 1, "user id placed in the sub claim")
	role := flag.String("role", model.RoleBooker, "OPERATOR or BOOKER")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	flag.Parse()

	if *secret == "" {
		log.Fatal("no secret: set JWT_SECRET or pass -secret")
	}
	if *role != model.RoleOperator && *role != model.RoleBooker {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(*secret, *user, *role, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
}
