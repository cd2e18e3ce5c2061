package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"friendchat/backend/internal/auth"
	"friendchat/backend/internal/config"
	"friendchat/backend/internal/e2e"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  user-add <email> <name>                 create a user
  token <user_id>                         issue a bearer token for a user
  friends <user_id>                       list a user's friends
  history <conversation_id> [--decrypt]   print a conversation's messages`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db)
	if err := storageSvc.Migrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err := dispatch(ctx, os.Stdout, storageSvc, tokens, os.Args[1:]); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Println(string(uerr))
			os.Exit(1)
		}
		log.Fatalf("Error: %v", err)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, out io.Writer, s storage.Storage, tokens *auth.TokenService, args []string) error {
	switch args[0] {
	case "user-add":
		if len(args) != 3 {
			return usageError("Usage: admin user-add <email> <name>")
		}
		return addUser(ctx, out, s, args[1], args[2])
	case "token":
		if len(args) != 2 {
			return usageError("Usage: admin token <user_id>")
		}
		return issueToken(ctx, out, s, tokens, args[1])
	case "friends":
		if len(args) != 2 {
			return usageError("Usage: admin friends <user_id>")
		}
		return listFriends(ctx, out, s, args[1])
	case "history":
		if len(args) < 2 || len(args) > 3 || (len(args) == 3 && args[2] != "--decrypt") {
			return usageError("Usage: admin history <conversation_id> [--decrypt]")
		}
		return printHistory(ctx, out, s, args[1], len(args) == 3)
	default:
		return usageError("Unknown command\n\n" + usage)
	}
}

func addUser(ctx context.Context, out io.Writer, s storage.Storage, email, name string) error {
	user := &models.User{Email: email, Name: name}
	if err := s.SaveUser(ctx, user); err != nil {
		return err
	}
	fmt.Fprintf(out, "User %s (%s) has been created with id %s.\n", name, email, user.ID)
	return nil
}

func issueToken(ctx context.Context, out io.Writer, s storage.Storage, tokens *auth.TokenService, userID string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	token, err := tokens.Issue(user)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func listFriends(ctx context.Context, out io.Writer, s storage.Storage, userID string) error {
	friends, err := s.ListFriends(ctx, userID)
	if err != nil {
		return err
	}
	if len(friends) == 0 {
		fmt.Fprintln(out, "No friends yet.")
		return nil
	}
	for _, f := range friends {
		name := ""
		if f.Friend != nil {
			name = f.Friend.Name
		}
		fmt.Fprintf(out, "%s\t%s\tsince %s\n", f.FriendID, name, f.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func printHistory(ctx context.Context, out io.Writer, s storage.Storage, conversationID string, decrypt bool) error {
	var key []byte
	if decrypt {
		participants, err := s.GetConversationParticipants(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("conversation %s: %w", conversationID, err)
		}
		if len(participants) != 2 {
			return fmt.Errorf("conversation %s has %d participants", conversationID, len(participants))
		}
		key = e2e.DeriveConversationKey(participants[0], participants[1], conversationID)
	}

	history, err := s.GetMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, m := range history {
		content := m.Content
		if key != nil {
			if plain, err := e2e.Decrypt(key, content); err == nil {
				content = plain
			}
		}
		sender := m.SenderID
		if m.Sender != nil {
			sender = m.Sender.Name
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), sender, content)
	}
	return nil
}
