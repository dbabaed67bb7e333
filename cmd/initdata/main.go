// Command initdata prints a signed launch payload for local testing of
// POST /login without a Telegram client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/watasiwa/tradegate/internal/initdata"
)

func main() {
	_ = godotenv.Load()

	token := flag.String("token", os.Getenv("TELEGRAM_BOT_TOKEN"), "bot token the payload is signed with")
	userID := flag.Int64("user", 0, "numeric user id")
	firstName := flag.String("first-name", "Dev", "first name")
	lastName := flag.String("last-name", "", "last name")
	username := flag.String("username", "", "username")
	lang := flag.String("lang", "en", "language code")
	asJSON := flag.Bool("json", false, "print a /login request body instead of the raw payload")
	flag.Parse()

	if *token == "" || *userID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: initdata -user <id> [-token <bot token>]")
		os.Exit(2)
	}

	user, err := json.Marshal(initdata.User{
		ID:           *userID,
		FirstName:    *firstName,
		LastName:     *lastName,
		Username:     *username,
		LanguageCode: *lang,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode user: %v\n", err)
		os.Exit(1)
	}

	payload := initdata.Sign([]initdata.Field{
		{Key: "user", Value: string(user)},
		{Key: "auth_date", Value: strconv.FormatInt(time.Now().Unix(), 10)},
	}, *token)

	if !*asJSON {
		fmt.Println(payload)
		return
	}
	body, _ := json.Marshal(map[string]string{"signedPayload": payload})
	fmt.Println(string(body))
}
